// Package sheet stores the A-Z table and quiz results in an xlsx workbook.
package sheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/azdrill/internal/abc"
	"github.com/verte-zerg/azdrill/internal/model"
)

const (
	// ResultsSheet holds one row per completed session.
	ResultsSheet = "Quiz Results"
	defaultSheet = "Sheet1"
	timestampFmt = "2006-01-02 15:04:05"
)

var resultsHeader = []interface{}{"Timestamp", "Worksheet", "Status"}

// Workbook is an item store and results sink backed by an xlsx file.
// Column A holds the key and column B the comma-separated values.
type Workbook struct {
	mu    sync.Mutex
	path  string
	sheet string
	now   func() time.Time
}

// Open opens or creates the workbook at path and selects sheet, creating the
// worksheet when it does not exist. An empty sheet selects the first worksheet.
func Open(path, sheet string) (*Workbook, error) {
	if path == "" {
		return nil, fmt.Errorf("workbook path is empty")
	}
	w := &Workbook{path: path, now: time.Now}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat workbook: %w", err)
		}
		if err := create(path, sheet); err != nil {
			return nil, err
		}
	}
	if err := w.Use(sheet); err != nil {
		return nil, err
	}
	return w, nil
}

func create(path, sheet string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create workbook directory: %w", err)
	}
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of a new workbook.
			_ = cerr
		}
	}()
	if sheet != "" && sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to name worksheet %q: %w", sheet, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	return nil
}

// Path returns the workbook file path.
func (w *Workbook) Path() string {
	return w.path
}

// Sheet returns the active worksheet name.
func (w *Workbook) Sheet() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sheet
}

// Use makes name the active worksheet, creating it when missing.
func (w *Workbook) Use(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if name == ResultsSheet {
		return fmt.Errorf("%q is reserved for results", ResultsSheet)
	}
	selected := name
	err := w.update(func(f *excelize.File) (bool, error) {
		sheets := dataSheets(f)
		if selected == "" && len(sheets) > 0 {
			selected = sheets[0]
		}
		if selected == "" {
			selected = defaultSheet
		}
		if contains(sheets, selected) {
			return false, nil
		}
		if _, err := f.NewSheet(selected); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to select worksheet %q: %w", selected, err)
	}
	w.sheet = selected
	return nil
}

// Sheets lists the data worksheets, excluding the results sheet.
func (w *Workbook) Sheets() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var sheets []string
	err := w.view(func(f *excelize.File) error {
		sheets = dataSheets(f)
		return nil
	})
	return sheets, err
}

// Rename renames a data worksheet.
func (w *Workbook) Rename(from, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("new worksheet name is empty")
	}
	if from == ResultsSheet || to == ResultsSheet {
		return fmt.Errorf("%q is reserved for results", ResultsSheet)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.update(func(f *excelize.File) (bool, error) {
		sheets := dataSheets(f)
		if !contains(sheets, from) {
			return false, fmt.Errorf("worksheet %q not found", from)
		}
		if contains(sheets, to) {
			return false, fmt.Errorf("worksheet %q already exists", to)
		}
		if err := f.SetSheetName(from, to); err != nil {
			return false, err
		}
		if w.sheet == from {
			w.sheet = to
		}
		return true, nil
	})
}

// Delete removes a data worksheet. At least one data worksheet must remain.
func (w *Workbook) Delete(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.update(func(f *excelize.File) (bool, error) {
		sheets := dataSheets(f)
		if !contains(sheets, name) {
			return false, fmt.Errorf("worksheet %q not found", name)
		}
		if len(sheets) <= 1 {
			return false, fmt.Errorf("at least one worksheet must remain")
		}
		if err := f.DeleteSheet(name); err != nil {
			return false, err
		}
		if w.sheet == name {
			w.sheet = dataSheets(f)[0]
		}
		return true, nil
	})
}

// Load reads the active worksheet. Header rows and unknown keys are skipped.
func (w *Workbook) Load(ctx context.Context) (model.Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	m := model.Mapping{}
	err := w.view(func(f *excelize.File) error {
		rows, err := f.GetRows(w.sheet)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
				continue
			}
			if isHeader(row) {
				continue
			}
			key, ok := model.ParseKey(row[0])
			if !ok {
				continue
			}
			m[key] = append(m[key], abc.SplitValues(row[1])...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", w.sheet, err)
	}
	return m, nil
}

// Save overwrites the active worksheet with one row per key A-Z.
func (w *Workbook) Save(ctx context.Context, m model.Mapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.update(func(f *excelize.File) (bool, error) {
		rows, err := f.GetRows(w.sheet)
		if err != nil {
			return false, err
		}
		for r := len(rows); r >= 1; r-- {
			if err := f.RemoveRow(w.sheet, r); err != nil {
				return false, err
			}
		}
		for i, key := range model.Keys() {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return false, err
			}
			row := []interface{}{string(key), abc.JoinValues(m[key])}
			if err := f.SetSheetRow(w.sheet, cell, &row); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to write worksheet %q: %w", w.sheet, err)
	}
	return nil
}

// Record appends a completion row to the results sheet.
func (w *Workbook) Record(ctx context.Context, label, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.update(func(f *excelize.File) (bool, error) {
		rows, err := ensureResults(f)
		if err != nil {
			return false, err
		}
		cell, err := excelize.CoordinatesToCellName(1, rows+1)
		if err != nil {
			return false, err
		}
		row := []interface{}{w.now().Format(timestampFmt), label, status}
		if err := f.SetSheetRow(ResultsSheet, cell, &row); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// Results returns recorded completions, newest first.
func (w *Workbook) Results(ctx context.Context) ([]model.ResultEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var entries []model.ResultEntry
	err := w.view(func(f *excelize.File) error {
		if !contains(f.GetSheetList(), ResultsSheet) {
			return nil
		}
		rows, err := f.GetRows(ResultsSheet)
		if err != nil {
			return err
		}
		for i := len(rows) - 1; i >= 1; i-- {
			row := rows[i]
			if len(row) < 3 {
				continue
			}
			recorded, err := time.ParseInLocation(timestampFmt, row[0], time.Local)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			entries = append(entries, model.ResultEntry{
				ID:         fmt.Sprintf("%s!%d", ResultsSheet, i+1),
				RecordedAt: recorded,
				Label:      row[1],
				Status:     row[2],
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return entries, nil
}

func ensureResults(f *excelize.File) (int, error) {
	if contains(f.GetSheetList(), ResultsSheet) {
		rows, err := f.GetRows(ResultsSheet)
		if err != nil {
			return 0, err
		}
		if len(rows) > 0 {
			return len(rows), nil
		}
	} else if _, err := f.NewSheet(ResultsSheet); err != nil {
		return 0, err
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &resultsHeader); err != nil {
		return 0, err
	}
	return 1, nil
}

func (w *Workbook) view(fn func(f *excelize.File) error) error {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close for read access.
			_ = cerr
		}
	}()
	return fn(f)
}

func (w *Workbook) update(fn func(f *excelize.File) (bool, error)) error {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	changed, err := fn(f)
	if err == nil && changed {
		err = f.Save()
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func dataSheets(f *excelize.File) []string {
	var sheets []string
	for _, name := range f.GetSheetList() {
		if name == ResultsSheet {
			continue
		}
		sheets = append(sheets, name)
	}
	return sheets
}

func isHeader(row []string) bool {
	return strings.EqualFold(strings.TrimSpace(row[0]), "key") &&
		strings.EqualFold(strings.TrimSpace(row[1]), "value")
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
