// File: internal/extract/table.go
// Package extract reads terminal data tables out of the current page.
// The table's serialized HTML is fetched once per call through the
// session and parsed statically, so header flattening and row slicing
// never race against the live DOM.
package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// PageSource supplies the serialized HTML of an element by id.
type PageSource interface {
	OuterHTML(ctx context.Context, id string) (string, error)
}

// Extractor derives column headers and data rows for terminal tables.
// Headers are resolved exactly once per run per table id; they are
// assumed stable across partitions and items sharing that id.
type Extractor struct {
	src    PageSource
	logger *zap.Logger

	headers map[string][]string
	// order remembers header resolution order so the aggregated header
	// row of the artifact is deterministic.
	order []string
}

// New returns an extractor reading through the given page source.
func New(src PageSource, logger *zap.Logger) *Extractor {
	return &Extractor{
		src:     src,
		logger:  logger.Named("extract"),
		headers: make(map[string][]string),
	}
}

// ResolveHeaders returns the effective column names for the table,
// resolving them from the page on first call and from cache thereafter.
//
// The first two header rows are considered: a first-row cell declaring a
// colspan is replaced by that many cells of the second row (grouped
// header flattening); otherwise the first-row cell text is used directly.
// An empty leading cell is dropped unconditionally, as it is reserved for
// the row-action control, not data.
func (e *Extractor) ResolveHeaders(ctx context.Context, tableID string) ([]string, error) {
	if cached, ok := e.headers[tableID]; ok {
		return cached, nil
	}
	raw, err := e.src.OuterHTML(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("resolving headers of table %q: %w", tableID, err)
	}
	headers, err := ParseHeaders(raw)
	if err != nil {
		return nil, fmt.Errorf("resolving headers of table %q: %w", tableID, err)
	}
	e.headers[tableID] = headers
	e.order = append(e.order, tableID)
	e.logger.Info("Resolved table headers.", zap.String("table", tableID), zap.Strings("headers", headers))
	return headers, nil
}

// Rows returns the table's current data rows as ordered string tuples, in
// strict document order. Each row's first cell (the action control) is
// dropped, and rows yielding no cells are skipped.
func (e *Extractor) Rows(ctx context.Context, tableID string) ([][]string, error) {
	raw, err := e.src.OuterHTML(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("extracting rows of table %q: %w", tableID, err)
	}
	rows, err := ParseRows(raw)
	if err != nil {
		return nil, fmt.Errorf("extracting rows of table %q: %w", tableID, err)
	}
	e.logger.Debug("Extracted rows.", zap.String("table", tableID), zap.Int("rows", len(rows)))
	return rows, nil
}

// ResolvedHeaders returns every header set resolved so far, concatenated
// in resolution order. This is the tail of the artifact's header row.
func (e *Extractor) ResolvedHeaders() []string {
	var out []string
	for _, id := range e.order {
		out = append(out, e.headers[id]...)
	}
	return out
}

// ParseHeaders flattens the first two header rows of a serialized table.
func ParseHeaders(rawHTML string) ([]string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing table html: %w", err)
	}
	top := htmlquery.Find(doc, "//tr[1]/td | //tr[1]/th")
	bottom := htmlquery.Find(doc, "//tr[2]/td | //tr[2]/th")

	var headers []string
	bottomIdx := 0
	for i, cell := range top {
		text := cellText(cell)
		if i == 0 && text == "" {
			// Reserved action-control column.
			continue
		}
		span := colspan(cell)
		if span > 0 {
			for j := 0; j < span; j++ {
				if bottomIdx >= len(bottom) {
					return nil, fmt.Errorf("grouped header %q spans %d columns but second row has only %d cells", text, span, len(bottom))
				}
				headers = append(headers, cellText(bottom[bottomIdx]))
				bottomIdx++
			}
			continue
		}
		headers = append(headers, text)
	}
	return headers, nil
}

// ParseRows slices the data rows of a serialized table. Data rows follow
// the target site's row-id naming convention (id starting with "tr");
// each row's leading action cell is dropped and empty rows are skipped.
func ParseRows(rawHTML string) ([][]string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing table html: %w", err)
	}
	var rows [][]string
	for _, tr := range htmlquery.Find(doc, "//tr[starts-with(@id,'tr')]") {
		cells := htmlquery.Find(tr, ".//td")
		if len(cells) <= 1 {
			continue
		}
		row := make([]string, 0, len(cells)-1)
		for _, td := range cells[1:] {
			row = append(row, cellText(td))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cellText(n *html.Node) string {
	return strings.TrimSpace(htmlquery.InnerText(n))
}

// colspan returns the declared column span of a header cell, or 0 when
// the cell spans a single column.
func colspan(n *html.Node) int {
	v := htmlquery.SelectAttr(n, "colspan")
	if v == "" {
		return 0
	}
	span, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || span < 1 {
		return 0
	}
	return span
}
