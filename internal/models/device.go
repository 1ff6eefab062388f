package models

// Device 设备信息（摄像头 / 边缘盒子）
type Device struct {
	DeviceID     string  `json:"device_id"`
	TenantID     string  `json:"tenant_id"`
	DeviceName   string  `json:"device_name"`
	SerialNumber *string `json:"serial_number,omitempty"`
	UID          *string `json:"uid,omitempty"`
	RoomName     *string `json:"room_name,omitempty"`
}
