// Package spreadsheet builds the monitoring xlsx output.
package spreadsheet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	// SheetName is the single output sheet.
	SheetName = "monitoring_usulan"

	// MinColWidth keeps long Indonesian labels readable without resizing.
	MinColWidth = 50.0
)

// Header is the fixed output header row.
var Header = []string{"No. Peserta", "NIP", "Nama", "Status Usulan", "Drive URL"}

// driveURLCol is the 1-based column index of the Drive URL column.
const driveURLCol = 5

// Row is one spreadsheet data row.
type Row struct {
	NoPeserta   string
	NIP         string
	Nama        string
	StatusLabel string
	DriveURL    string
}

// Builder accumulates rows for the monitoring sheet and writes the workbook
// on Save. It is not safe for concurrent use; the download pool patches
// results in one batch after all workers join.
type Builder struct {
	file    *excelize.File
	nextRow int
	// rowIndex maps participant number to its sheet row for URL patching.
	rowIndex map[string]int
}

// NewBuilder creates a workbook with the header row in place.
func NewBuilder() (*Builder, error) {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	b := &Builder{
		file:     f,
		nextRow:  1,
		rowIndex: make(map[string]int),
	}

	if err := b.writeCells(1, Header...); err != nil {
		return nil, err
	}
	b.nextRow = 2

	if err := f.SetColWidth(SheetName, "A", "E", MinColWidth); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	return b, nil
}

// AppendRow adds one data row. The first row per participant number claims
// the patch slot for that identifier.
func (b *Builder) AppendRow(row Row) error {
	if err := b.writeCells(b.nextRow, row.NoPeserta, row.NIP, row.Nama, row.StatusLabel, row.DriveURL); err != nil {
		return err
	}
	if row.NoPeserta != "" {
		if _, exists := b.rowIndex[row.NoPeserta]; !exists {
			b.rowIndex[row.NoPeserta] = b.nextRow
		}
	}
	b.nextRow++
	return nil
}

// RowCount returns the number of data rows appended.
func (b *Builder) RowCount() int {
	return b.nextRow - 2
}

// PatchDriveURLs overwrites the Drive URL column for the given participant
// numbers. Identifiers without a row are ignored.
func (b *Builder) PatchDriveURLs(urls map[string]string) (int, error) {
	patched := 0
	for noPeserta, url := range urls {
		if url == "" {
			continue
		}
		rowNum, ok := b.rowIndex[noPeserta]
		if !ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(driveURLCol, rowNum)
		if err != nil {
			return patched, fmt.Errorf("failed to derive cell name: %w", err)
		}
		if err := b.file.SetCellValue(SheetName, cell, url); err != nil {
			return patched, fmt.Errorf("failed to patch drive url: %w", err)
		}
		patched++
	}
	return patched, nil
}

// Save writes the workbook to path, creating parent directories as needed.
func (b *Builder) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := b.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save spreadsheet: %w", err)
	}
	return nil
}

// Close releases the underlying workbook resources.
func (b *Builder) Close() error {
	return b.file.Close()
}

func (b *Builder) writeCells(rowNum int, values ...string) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return fmt.Errorf("failed to derive cell name: %w", err)
		}
		if err := b.file.SetCellValue(SheetName, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}
