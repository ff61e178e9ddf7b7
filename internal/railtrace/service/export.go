package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/railtrace/internal/railtrace/authz"
	"github.com/xuri/excelize/v2"
)

var componentExportHeaders = []string{
	"Component ID", "QR Code", "Item Code", "Component Name", "IRS Specification",
	"Unit Weight", "Batch Number", "Serial Number", "Production Date", "Warranty (months)",
	"Expected Expiry", "Status", "QC Status", "Installation Location", "Generated At",
}

// Export writes the caller's components to an xlsx workbook.
func (s *ComponentService) Export(ctx context.Context, actor authz.Actor) (*excelize.File, string, error) {
	if err := s.gate.Authorize(actor, authz.OpExportOwn, authz.Target{}); err != nil {
		return nil, "", err
	}
	actor, err := s.withManufacturer(ctx, actor)
	if err != nil {
		return nil, "", err
	}
	items, _, err := s.ListOwn(ctx, actor, 1, 0)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "Components"
	f.SetSheetName("Sheet1", sheet)

	// 表头加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range componentExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
		f.SetColWidth(sheet, col, col, exportColWidth(h))
	}

	for i, c := range items {
		row := i + 2
		location := ""
		if c.InstallationLocation != nil {
			location = *c.InstallationLocation
		}
		values := []interface{}{
			c.ComponentID, c.QRCode, c.ItemCode, c.ComponentName, c.IRSSpecification,
			c.UnitWeight.String(), c.BatchNumber, c.SerialNumber,
			c.ProductionDate.Format("2006-01-02"), c.WarrantyPeriod,
			c.ExpectedExpiry.Format("2006-01-02"), string(c.Status), string(c.QCStatus),
			location, c.GeneratedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
		}
	}

	filename := fmt.Sprintf("components_%s.xlsx", s.now().UTC().Format("20060102"))
	return f, filename, nil
}

func exportColWidth(header string) float64 {
	switch header {
	case "Component Name", "Installation Location", "Generated At":
		return 24
	case "Component ID", "QR Code", "Batch Number", "Serial Number":
		return 22
	}
	return 14
}
