package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wisefido-vision/internal/models"
)

// ErrDeviceNotFound 设备不存在
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository 设备仓库
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

const deviceQuery = `
		SELECT
			d.device_id,
			d.tenant_id,
			d.device_name,
			d.serial_number,
			d.uid,
			r.room_name
		FROM devices d
		LEFT JOIN rooms r ON r.room_id = d.bound_room_id
		WHERE %s = $1
		LIMIT 1
	`

// GetDeviceBySerialNumber 根据序列号获取设备
func (r *DeviceRepository) GetDeviceBySerialNumber(ctx context.Context, serialNumber string) (*models.Device, error) {
	return r.getDevice(ctx, "d.serial_number", serialNumber)
}

// GetDeviceByUID 根据 UID 获取设备
func (r *DeviceRepository) GetDeviceByUID(ctx context.Context, uid string) (*models.Device, error) {
	return r.getDevice(ctx, "d.uid", uid)
}

// ResolveDevice 先按序列号、再按 UID 查找设备
func (r *DeviceRepository) ResolveDevice(ctx context.Context, identifier string) (*models.Device, error) {
	device, err := r.GetDeviceBySerialNumber(ctx, identifier)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return nil, err
	}
	return r.GetDeviceByUID(ctx, identifier)
}

func (r *DeviceRepository) getDevice(ctx context.Context, column, value string) (*models.Device, error) {
	var device models.Device
	var serialNumber, uid, roomName sql.NullString

	err := r.db.QueryRowContext(ctx, fmt.Sprintf(deviceQuery, column), value).Scan(
		&device.DeviceID,
		&device.TenantID,
		&device.DeviceName,
		&serialNumber,
		&uid,
		&roomName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, value)
		}
		return nil, fmt.Errorf("failed to query device: %w", err)
	}

	if serialNumber.Valid {
		device.SerialNumber = &serialNumber.String
	}
	if uid.Valid {
		device.UID = &uid.String
	}
	if roomName.Valid {
		device.RoomName = &roomName.String
	}

	return &device, nil
}
