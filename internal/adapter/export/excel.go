package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rl1809/demand-desk/internal/core/domain"
	"github.com/rl1809/demand-desk/internal/core/reporting"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var inventoryHeaders = []string{
	"क्र.सं.", "सामानको नाम", "एकाई", "मौज्दात",
	"स्वीकृत मौज्दात स्तर", "आकस्मिक माग बिन्दु", "माग गर्नुपर्ने परिमाण", "आकस्मिक",
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
}

// InventoryWorkbook renders the monthly inventory report. Items below their
// emergency order point are highlighted.
func InventoryWorkbook(fiscalYear string, items []domain.ReconciledItem) (*excelize.File, string, error) {
	f := excelize.NewFile()
	sheet := "जिन्सी"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", err
	}

	bold, err := headerStyle(f)
	if err != nil {
		return nil, "", err
	}
	alert, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#F8CBAD"}},
	})
	if err != nil {
		return nil, "", err
	}

	f.SetCellValue(sheet, "A1", "जिन्सी मासिक प्रतिवेदन")
	f.SetCellValue(sheet, "A2", "आर्थिक वर्ष "+fiscalYear)
	for i, h := range inventoryHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "4"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, bold)
	}

	for idx, r := range items {
		row := idx + 5
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), idx+1)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.Item.ItemName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.Item.Unit)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.Item.CurrentQuantity)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.ApprovedStockLevel)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.EmergencyOrderPoint)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.QuantityToOrder)
		if r.BelowEmergencyOrderPoint {
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), "✓")
			f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("H%d", row), alert)
		}
	}

	f.SetColWidth(sheet, "B", "B", 30)
	f.SetColWidth(sheet, "E", "G", 18)

	filename := fmt.Sprintf("inventory_%s.xlsx", fileSafe(fiscalYear))
	return f, filename, nil
}

// ClinicalWorkbook renders the rabies post-exposure matrix with its totals.
func ClinicalWorkbook(m reporting.Matrix) (*excelize.File, string, error) {
	f := excelize.NewFile()
	sheet := "Rabies"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", err
	}

	bold, err := headerStyle(f)
	if err != nil {
		return nil, "", err
	}

	f.SetCellValue(sheet, "A1", "Monthly Records of Post Exposure Treatment of Rabies")
	f.SetCellValue(sheet, "A2", fmt.Sprintf("Fiscal Year %s, Month %s", m.FiscalYear, m.MonthName))

	headers := append([]string{"Description"}, m.Columns...)
	headers = append(headers, "Total")
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "4"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, bold)
	}

	for r, label := range m.Rows {
		row := r + 5
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), label)
		for c := range m.Columns {
			col, _ := excelize.ColumnNumberToName(c + 2)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), m.Cells[r][c])
		}
		col, _ := excelize.ColumnNumberToName(len(m.Columns) + 2)
		f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), m.RowTotals[r])
	}

	totalRow := len(m.Rows) + 5
	f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Total")
	for c, total := range m.ColumnTotals {
		col, _ := excelize.ColumnNumberToName(c + 2)
		f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, totalRow), total)
	}
	col, _ := excelize.ColumnNumberToName(len(m.Columns) + 2)
	f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, totalRow), m.GrandTotal)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("%s%d", col, totalRow), bold)

	f.SetColWidth(sheet, "A", "A", 24)

	filename := fmt.Sprintf("rabies_%s_%s.xlsx", fileSafe(m.FiscalYear), m.Month)
	return f, filename, nil
}

func fileSafe(s string) string {
	return strings.ReplaceAll(s, "/", "-")
}
