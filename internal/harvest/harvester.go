// File: internal/harvest/harvester.go
// Package harvest orchestrates a run: once per partition key it selects
// the partition, walks the route, and tags the returned rows; across
// partitions it aggregates everything in iteration order. Whatever has
// been collected when a failure unwinds this far is saved under the
// partial designation before the failure surfaces.
package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/framewalk/internal/engine"
	"github.com/xkilldash9x/framewalk/internal/route"
	"github.com/xkilldash9x/framewalk/internal/sink"
)

// partialPrefix marks artifacts produced by an aborted run. The spelling
// comes from the target project's data pipeline conventions.
const partialPrefix = "parcial_"

// Navigator is the subset of the browser session the orchestrator drives
// directly.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	SwitchToFrame(ctx context.Context, name string) error
	SelectByValue(ctx context.Context, id, value string) error
}

// RouteWalker runs one full depth-first traversal for the currently
// selected partition.
type RouteWalker interface {
	Walk(ctx context.Context, rt *route.Route, start string) ([][]string, error)
}

// HeaderSource reports the table headers resolved during the run.
type HeaderSource interface {
	ResolvedHeaders() []string
}

// Harvester drives the traversal engine once per partition key and owns
// the dual-path persistence contract.
type Harvester struct {
	nav         Navigator
	walker      RouteWalker
	headers     HeaderSource
	sink        sink.Sink
	set         *route.Set
	logger      *zap.Logger
	maxAttempts int
}

// New wires a harvester over its collaborators.
func New(nav Navigator, walker RouteWalker, headers HeaderSource, out sink.Sink, set *route.Set, logger *zap.Logger, maxAttempts int) *Harvester {
	return &Harvester{
		nav:         nav,
		walker:      walker,
		headers:     headers,
		sink:        out,
		set:         set,
		logger:      logger.Named("harvest"),
		maxAttempts: maxAttempts,
	}
}

// Run harvests the named route across the given partition keys, in
// order. Rows from all partitions concatenate into one sequence, each
// row prefixed with its partition key. On an unrecoverable failure the
// accumulated rows are saved under the partial designation and the
// failure is returned; on success the nominal artifact is written.
func (h *Harvester) Run(ctx context.Context, routeName string, years []string) error {
	rt, err := h.set.Route(routeName)
	if err != nil {
		return err
	}
	root, err := rt.Root()
	if err != nil {
		return fmt.Errorf("route %q: %w", routeName, err)
	}

	runID := uuid.NewString()
	started := time.Now()
	logger := h.logger.With(zap.String("run_id", runID), zap.String("route", routeName))
	logger.Info("Starting harvest run.", zap.Strings("years", years), zap.String("root", root))

	var all [][]string
	runErr := h.collect(ctx, logger, rt, root, years, &all)

	headers := make([]string, 0, len(rt.BaseHeaders))
	headers = append(headers, rt.BaseHeaders...)
	headers = append(headers, h.headers.ResolvedHeaders()...)

	// The save must proceed even when the run was aborted by the signal
	// context; losing collected data to a Ctrl-C would defeat the point.
	saveCtx := context.WithoutCancel(ctx)

	artifact := rt.Artifact
	if runErr != nil {
		artifact = partialPrefix + artifact
		logger.Warn("Run failed; saving partial results.",
			zap.String("artifact", artifact),
			zap.Int("rows", len(all)),
			zap.Error(runErr),
		)
	}
	if runErr == nil || len(all) > 0 {
		if err := h.sink.Save(saveCtx, artifact, headers, all); err != nil {
			if runErr != nil {
				// The traversal failure stays the primary error.
				logger.Error("Partial save failed.", zap.Error(err))
			} else {
				return fmt.Errorf("saving artifact: %w", err)
			}
		}
	}

	manifest := sink.Manifest{
		RunID:      runID,
		Route:      routeName,
		Artifact:   artifact,
		Partial:    runErr != nil,
		Partitions: years,
		RowCount:   len(all),
		Headers:    headers,
		StartedAt:  started,
		Duration:   time.Since(started),
	}
	if runErr != nil {
		manifest.Error = runErr.Error()
	}
	if err := h.sink.WriteManifest(manifest); err != nil {
		logger.Error("Manifest write failed.", zap.Error(err))
	}

	if runErr != nil {
		return fmt.Errorf("harvest of route %q aborted: %w", routeName, runErr)
	}
	logger.Info("Harvest run complete.", zap.Int("rows", len(all)), zap.Duration("took", time.Since(started)))
	return nil
}

// collect performs the per-partition loop, appending year-prefixed rows
// into acc. It returns the first unrecoverable failure; rows gathered
// before (and during) the failing partition stay in acc.
func (h *Harvester) collect(ctx context.Context, logger *zap.Logger, rt *route.Route, root string, years []string, acc *[][]string) error {
	if err := h.nav.Navigate(ctx, h.set.StartURL); err != nil {
		return err
	}
	if err := h.nav.SwitchToFrame(ctx, h.set.MainFrame); err != nil {
		return err
	}

	for _, year := range years {
		logger.Info("Selecting partition.", zap.String("year", year))
		err := engine.RetryStale(ctx, logger, h.maxAttempts, "select year "+year, func(c context.Context) error {
			return h.nav.SelectByValue(c, h.set.YearDropdown, year)
		})
		if err != nil {
			return fmt.Errorf("selecting year %s: %w", year, err)
		}
		if err := h.nav.SwitchToFrame(ctx, h.set.MainFrame); err != nil {
			return fmt.Errorf("selecting year %s: %w", year, err)
		}

		rows, walkErr := h.walker.Walk(ctx, rt, root)
		for _, row := range rows {
			tagged := make([]string, 0, len(row)+1)
			tagged = append(tagged, year)
			tagged = append(tagged, row...)
			*acc = append(*acc, tagged)
		}
		if walkErr != nil {
			return fmt.Errorf("year %s: %w", year, walkErr)
		}
		logger.Info("Partition complete.", zap.String("year", year), zap.Int("rows", len(rows)))
	}
	return nil
}
