package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"wisefido-vision/internal/replay"
)

// SheetName 回放结果工作表
const SheetName = "Fall Replay"

// ReplayHeader 回放报表表头
var ReplayHeader = []string{
	"Name",
	"File",
	"Frames",
	"Motion Index",
	"Fall Score",
	"Decision",
	"Error",
}

var columnWidths = []float64{
	20, // Name
	40, // File
	10, // Frames
	14, // Motion Index
	12, // Fall Score
	12, // Decision
	50, // Error
}

// GenerateReplayReport 生成回放结果 Excel 文件，每个缓存一行
func GenerateReplayReport(outcomes []replay.Outcome) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 跌倒行标红
	fallStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create fall style: %w", err)
	}

	scoreStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create score style: %w", err)
	}

	for col, header := range ReplayHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, o := range outcomes {
		row := i + 2
		values := []interface{}{o.Name, o.File}
		if o.Error != "" {
			values = append(values, nil, nil, nil, "ERROR", o.Error)
		} else {
			values = append(values, o.Frames, o.Motion, o.Score, decision(o.IsFall), nil)
		}

		start, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}

		if o.Error == "" {
			if err := f.SetCellStyle(SheetName, cellName(4, row), cellName(5, row), scoreStyle); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set score style: %w", err)
			}
		}
		if o.IsFall {
			if err := f.SetCellStyle(SheetName, cellName(6, row), cellName(6, row), fallStyle); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set fall style: %w", err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteReplayReport 生成回放报表并写入 path
func WriteReplayReport(path string, outcomes []replay.Outcome) error {
	data, err := GenerateReplayReport(outcomes)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func decision(isFall bool) string {
	if isFall {
		return "FALL"
	}
	return "OK"
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
