// File: internal/sink/manifest.go
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Manifest records what a harvest run produced, next to the artifact, so
// downstream consumers can tell a partial extraction from a complete one
// without opening the workbook.
type Manifest struct {
	RunID      string        `json:"run_id"`
	Route      string        `json:"route"`
	Artifact   string        `json:"artifact"`
	Partial    bool          `json:"partial"`
	Partitions []string      `json:"partitions"`
	RowCount   int           `json:"row_count"`
	Headers    []string      `json:"headers"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

// WriteManifest writes the run manifest as <artifact>.manifest.json.
func (x *XLSX) WriteManifest(m Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(x.dir, m.Artifact+".manifest.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing manifest %q: %w", path, err)
	}
	x.logger.Info("Manifest written.", zap.String("path", path), zap.Bool("partial", m.Partial))
	return nil
}
