// File: internal/sink/xlsx.go
// Package sink persists harvested rows as tabular artifacts. The write
// path is shared between nominal and partial saves; only the destination
// name differs, so no failure mode can silently discard collected data.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sink writes an ordered-row, ordered-column tabular artifact plus a run
// manifest describing it.
type Sink interface {
	Save(ctx context.Context, name string, headers []string, rows [][]string) error
	WriteManifest(m Manifest) error
}

const sheetName = "Sheet1"

// XLSX writes artifacts as single-sheet xlsx workbooks into a directory.
type XLSX struct {
	dir    string
	logger *zap.Logger
}

// NewXLSX returns an xlsx sink rooted at dir, creating it if needed.
func NewXLSX(dir string, logger *zap.Logger) (*XLSX, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir %q: %w", dir, err)
	}
	return &XLSX{dir: dir, logger: logger.Named("sink")}, nil
}

// Save writes headers and rows to <dir>/<name>. Row and column order are
// preserved exactly as given.
func (x *XLSX) Save(ctx context.Context, name string, headers []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := writeRow(f, 1, headers); err != nil {
		return fmt.Errorf("writing header row: %w", err)
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil && len(headers) > 0 {
		last, cerr := excelize.CoordinatesToCellName(len(headers), 1)
		if cerr == nil {
			_ = f.SetCellStyle(sheetName, "A1", last, boldStyle)
		}
	}
	for i, row := range rows {
		if err := writeRow(f, i+2, row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	path := filepath.Join(x.dir, name)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving artifact %q: %w", path, err)
	}
	x.logger.Info("Artifact saved.",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(headers)),
	)
	return nil
}

func writeRow(f *excelize.File, rowNum int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	converted := make([]interface{}, len(values))
	for i, v := range values {
		converted[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &converted)
}
