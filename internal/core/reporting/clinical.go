package reporting

import (
	"fmt"
	"strings"

	"github.com/rl1809/demand-desk/internal/core/calendar"
	"github.com/rl1809/demand-desk/internal/core/domain"
)

const childAgeLimit = 15

var (
	ClinicalRows    = []string{"Male (15+Yr)", "Female (15+Yr)", "Male Child (<15 Yr)", "Female Child (<15 Yr)"}
	ClinicalColumns = []string{"Dog bite", "Monkey bite", "Cat bite", "Cattle bite", "Rodent bite", "Other"}
)

const (
	rowMale = iota
	rowFemale
	rowMaleChild
	rowFemaleChild
)

// Matrix is the monthly rabies post-exposure treatment table.
type Matrix struct {
	FiscalYear   string   `json:"fiscalYear"`
	Month        string   `json:"month"`
	MonthName    string   `json:"monthName"`
	Rows         []string `json:"rows"`
	Columns      []string `json:"columns"`
	Cells        [][]int  `json:"cells"`
	RowTotals    []int    `json:"rowTotals"`
	ColumnTotals []int    `json:"columnTotals"`
	GrandTotal   int      `json:"grandTotal"`
	// Unclassified counts matching records left out because their sex is
	// neither Male nor Female.
	Unclassified int `json:"unclassified"`
}

// Cell returns the count at the labelled row and column, 0 for unknown labels.
func (m Matrix) Cell(row, column string) int {
	r, c := indexOf(m.Rows, row), indexOf(m.Columns, column)
	if r < 0 || c < 0 {
		return 0
	}
	return m.Cells[r][c]
}

// AggregateClinical buckets the records registered in fiscalYear and month.
func AggregateClinical(records []domain.PatientRecord, fiscalYear, month string) Matrix {
	m := Matrix{
		FiscalYear:   fiscalYear,
		Month:        month,
		MonthName:    calendar.MonthName(month),
		Rows:         ClinicalRows,
		Columns:      ClinicalColumns,
		Cells:        make([][]int, len(ClinicalRows)),
		RowTotals:    make([]int, len(ClinicalRows)),
		ColumnTotals: make([]int, len(ClinicalColumns)),
	}
	for i := range m.Cells {
		m.Cells[i] = make([]int, len(ClinicalColumns))
	}

	for _, p := range records {
		if p.FiscalYear != fiscalYear || !sameMonth(recordMonth(p), month) {
			continue
		}
		r := rowFor(p.Sex, leadingInt(p.Age))
		if r < 0 {
			m.Unclassified++
			continue
		}
		m.Cells[r][columnFor(p.AnimalType)]++
	}

	for r, row := range m.Cells {
		for c, v := range row {
			m.RowTotals[r] += v
			m.ColumnTotals[c] += v
			m.GrandTotal += v
		}
	}
	return m
}

func recordMonth(p domain.PatientRecord) string {
	if strings.TrimSpace(p.RegMonth) != "" {
		return p.RegMonth
	}
	if d, ok := calendar.ParseLocal(p.RegDate); ok {
		return fmt.Sprintf("%02d", d.Month)
	}
	return ""
}

// sameMonth treats "8" and "08" alike.
func sameMonth(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.TrimLeft(a, "0") == strings.TrimLeft(b, "0")
}

// rowFor matches the registered sex exactly; "male" or " Male" is left
// unclassified rather than guessed.
func rowFor(sex string, age int) int {
	child := age < childAgeLimit
	switch sex {
	case "Male":
		if child {
			return rowMaleChild
		}
		return rowMale
	case "Female":
		if child {
			return rowFemaleChild
		}
		return rowFemale
	}
	return -1
}

// columnFor matches the first word of each column in order; "Cattle" therefore
// lands in the "Cat bite" column.
func columnFor(source string) int {
	s := strings.ToLower(source)
	for i, col := range ClinicalColumns {
		word := strings.ToLower(strings.Fields(col)[0])
		if strings.Contains(s, word) {
			return i
		}
	}
	return len(ClinicalColumns) - 1
}

// leadingInt parses the leading digits of s; "10 yrs" is 10 and "" is 0.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
