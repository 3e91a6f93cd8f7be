package sets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxExcelOptions = 6

type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportReport struct {
	TotalRows   int              `json:"total_rows"`
	SuccessRows int              `json:"success_rows"`
	FailedRows  int              `json:"failed_rows"`
	Sets        int              `json:"sets"`
	Errors      []ImportRowError `json:"errors"`
}

// ExportExcel renders the current registry as a workbook, one row per
// question with options spread across columns.
func (s *Service) ExportExcel() ([]byte, error) {
	s.mu.RLock()
	current := s.sets
	s.mu.RUnlock()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"set", "question", "answer"}
	for i := 1; i <= maxExcelOptions; i++ {
		headers = append(headers, fmt.Sprintf("option_%d", i))
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for si, set := range current {
		name := DisplayName(set, si)
		for _, q := range set.Questions {
			values := []any{name, q.Question, q.Answer}
			for _, opt := range q.Options {
				values = append(values, opt)
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}
	_ = f.SetColWidth(sheet, "A", "C", 40)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportExcel parses a workbook into question sets and, when at least
// one valid row was found, replaces the registry with the result.
// Rows are grouped by the set column in order of first appearance.
func (s *Service) ImportExcel(r io.Reader) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel sheet is empty")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no data rows found")
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"set", "question", "answer"} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	report := &ImportReport{Errors: make([]ImportRowError, 0)}
	order := make([]string, 0)
	bySet := make(map[string]*QuestionSet)

	for i := 1; i < len(rows); i++ {
		rowNo := i + 1
		row := rows[i]
		report.TotalRows++

		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		setName := get("set")
		questionText := get("question")
		answer := get("answer")

		options := make([]string, 0, maxExcelOptions)
		for n := 1; n <= maxExcelOptions; n++ {
			if opt := get(fmt.Sprintf("option_%d", n)); opt != "" {
				options = append(options, opt)
			}
		}

		switch {
		case questionText == "":
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: "question is required"})
			continue
		case len(options) < 2:
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: "at least two options are required"})
			continue
		case !contains(options, answer):
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: "answer must be one of the options"})
			continue
		}

		set, ok := bySet[setName]
		if !ok {
			set = &QuestionSet{Name: setName}
			bySet[setName] = set
			order = append(order, setName)
		}
		set.Questions = append(set.Questions, Question{
			Question: questionText,
			Options:  options,
			Answer:   answer,
		})
		report.SuccessRows++
	}

	if report.SuccessRows == 0 {
		return report, errors.New("no valid question rows found")
	}

	next := make([]QuestionSet, 0, len(order))
	for _, name := range order {
		next = append(next, *bySet[name])
	}
	s.Replace(next)
	report.Sets = len(next)
	return report, nil
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
