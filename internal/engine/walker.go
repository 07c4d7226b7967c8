// File: internal/engine/walker.go
// Package engine implements the hierarchical navigation engine: a
// depth-first walk over a route's level tree whose shape is only
// discoverable at run time and whose elements go stale after every
// navigation.
//
// The walk runs on an explicit frame stack rather than recursion: each
// frame carries its own copy-on-descend ancestor context, a phase tag and
// a row accumulator, which keeps cancellation checks and failure scoping
// tractable at any depth.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/framewalk/internal/browser"
	"github.com/xkilldash9x/framewalk/internal/route"
)

// Browser is the subset of the session the walker drives. All failures
// arrive pre-classified into the stale/timeout/fatal taxonomy.
type Browser interface {
	SwitchToFrame(ctx context.Context, name string) error
	CountItems(ctx context.Context, listSelector string) (int, error)
	LiveCount(ctx context.Context, listSelector string) (int, error)
	ItemName(ctx context.Context, listSelector string, index int, nameSelector string) (string, error)
	Click(ctx context.Context, id string) error
	GoBack(ctx context.Context) error
	Settle(ctx context.Context, d time.Duration) error
}

// TableReader extracts headers and rows from a terminal table. Header
// resolution is idempotent; repeated calls for the same table id must not
// touch the page again.
type TableReader interface {
	ResolveHeaders(ctx context.Context, tableID string) ([]string, error)
	Rows(ctx context.Context, tableID string) ([][]string, error)
}

// Walker performs the strictly sequential depth-first traversal for one
// partition. It owns no shared state beyond the single browser session.
type Walker struct {
	browser     Browser
	tables      TableReader
	logger      *zap.Logger
	mainFrame   string
	settleDelay time.Duration
	maxAttempts int
}

// NewWalker wires a traversal engine over a browser session and a table
// extractor. mainFrame is the route set's primary content frame.
func NewWalker(b Browser, t TableReader, logger *zap.Logger, mainFrame string, settleDelay time.Duration, maxAttempts int) *Walker {
	return &Walker{
		browser:     b,
		tables:      t,
		logger:      logger.Named("walker"),
		mainFrame:   mainFrame,
		settleDelay: settleDelay,
		maxAttempts: maxAttempts,
	}
}

type phase int

const (
	phaseEnter phase = iota
	phaseFanOut
	phaseAwaitItem // child pushed from a fan-out; back-navigate on return
	phaseAwaitPass // child pushed from a pass-through; exit on return
	phaseResume    // fan-out child returned; back-navigate and advance
	phaseLeaf
	phaseExit
)

// frame is one suspended level of the depth-first walk.
type frame struct {
	level *route.Level
	pctx  *PathContext
	phase phase

	// count is the item-count snapshot taken before iterating; it fixes
	// the iteration bound even if the live list later shrinks.
	count int
	idx   int

	rows [][]string
}

// Walk traverses the route from the given level and returns every
// extracted row, each prefixed with the ancestor item names in
// root-to-leaf order. Rows keep strict document order within a table and
// item-iteration order across a fan-out.
//
// On an unrecoverable failure the rows collected so far are still
// returned alongside the error, so the caller can persist partial
// results.
func (w *Walker) Walk(ctx context.Context, rt *route.Route, start string) ([][]string, error) {
	startLevel := rt.Level(start)
	if startLevel == nil {
		return nil, fmt.Errorf("route %q has no level %q", rt.Name, start)
	}

	stack := []*frame{{level: startLevel, pctx: NewPathContext()}}
	var out [][]string

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return w.drain(stack, out), err
		}
		f := stack[len(stack)-1]

		switch f.phase {
		case phaseEnter:
			w.logger.Info("Entering level.", zap.String("level", f.level.Name), zap.Int("depth", len(stack)))
			if err := w.enterLevel(ctx, f); err != nil {
				return w.drain(stack, out), err
			}
			switch {
			case f.level.IsBranch():
				n, err := w.snapshotCount(ctx, f)
				if err != nil {
					return w.drain(stack, out), err
				}
				f.count = n
				f.phase = phaseFanOut
			case f.level.NextLevel != "":
				w.logger.Debug("Pass-through level.", zap.String("next", f.level.NextLevel))
				f.phase = phaseAwaitPass
				stack = append(stack, &frame{level: rt.Level(f.level.NextLevel), pctx: f.pctx.Clone()})
			default:
				f.phase = phaseLeaf
			}

		case phaseFanOut:
			if f.idx >= f.count {
				f.phase = phaseExit
				continue
			}
			pushed, err := w.fanOutStep(ctx, rt, f, &stack)
			if err != nil {
				return w.drain(stack, out), err
			}
			if !pushed {
				// Index finished or was skipped without descending.
				continue
			}

		case phaseResume:
			if err := w.returnToList(ctx, f); err != nil {
				if browser.IsStale(err) {
					w.skipIndex(f, err)
					continue
				}
				return w.drain(stack, out), err
			}
			f.idx++
			f.phase = phaseFanOut

		case phaseLeaf:
			if err := w.extractLeaf(ctx, f); err != nil {
				return w.drain(stack, out), err
			}
			f.phase = phaseExit

		case phaseExit:
			w.logger.Info("Leaving level.", zap.String("level", f.level.Name), zap.Int("rows", len(f.rows)))
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				out = append(out, f.rows...)
				continue
			}
			parent := stack[len(stack)-1]
			parent.rows = append(parent.rows, f.rows...)
			switch parent.phase {
			case phaseAwaitItem:
				parent.phase = phaseResume
			case phaseAwaitPass:
				parent.phase = phaseExit
			}
		}
	}

	return out, nil
}

// enterLevel performs the level's optional trigger click and re-enters
// the content frame. Both are mandatory navigation steps: exhausted
// retries and timeouts propagate.
func (w *Walker) enterLevel(ctx context.Context, f *frame) error {
	if f.level.Trigger == "" {
		return nil
	}
	w.logger.Debug("Clicking level trigger.", zap.String("trigger", f.level.Trigger))
	err := RetryStale(ctx, w.logger, w.maxAttempts, "click trigger "+f.level.Trigger, func(c context.Context) error {
		return w.browser.Click(c, f.level.Trigger)
	})
	if err != nil {
		return fmt.Errorf("level %q: %w", f.level.Name, err)
	}
	if err := w.browser.SwitchToFrame(ctx, w.mainFrame); err != nil {
		return fmt.Errorf("level %q: %w", f.level.Name, err)
	}
	return nil
}

// snapshotCount fixes the fan-out iteration bound before any item is
// touched. A timeout here means the level legitimately has no content.
func (w *Walker) snapshotCount(ctx context.Context, f *frame) (int, error) {
	n, err := w.browser.CountItems(ctx, f.level.ListSelector)
	if err != nil {
		if browser.IsTimeout(err) {
			w.logger.Warn("No items found at level; continuing past it.",
				zap.String("level", f.level.Name),
				zap.String("selector", f.level.ListSelector),
			)
			return 0, nil
		}
		return 0, fmt.Errorf("level %q: %w", f.level.Name, err)
	}
	w.logger.Info("Fan-out list resolved.", zap.String("level", f.level.Name), zap.Int("items", n))
	return n, nil
}

// fanOutStep processes the current index of f's fan-out: re-resolve the
// live list, read the item name into the context, activate the item, and
// descend if the level has a next reference. It reports whether a child
// frame was pushed. A transient failure abandons this index only.
func (w *Walker) fanOutStep(ctx context.Context, rt *route.Route, f *frame, stack *[]*frame) (bool, error) {
	i := f.idx

	// The live list is re-resolved fresh every iteration; handles from
	// the snapshot or a prior pass are invalid after back-navigation.
	live, err := w.browser.LiveCount(ctx, f.level.ListSelector)
	if err != nil {
		if browser.IsStale(err) {
			w.skipIndex(f, err)
			return false, nil
		}
		return false, fmt.Errorf("level %q item %d: %w", f.level.Name, i, err)
	}
	if i >= live {
		w.logger.Warn("Item list shrank; skipping index.",
			zap.String("level", f.level.Name),
			zap.Int("index", i),
			zap.Int("live", live),
			zap.Int("snapshot", f.count),
		)
		f.idx++
		return false, nil
	}

	name, err := w.browser.ItemName(ctx, f.level.ListSelector, i, f.level.NameSelector)
	if err != nil {
		if browser.IsStale(err) {
			w.skipIndex(f, err)
			return false, nil
		}
		return false, fmt.Errorf("level %q item %d: %w", f.level.Name, i, err)
	}
	f.pctx.Set(f.level.Name, name)
	w.logger.Info("Entering item.",
		zap.String("level", f.level.Name),
		zap.String("item", name),
		zap.Int("index", i),
		zap.Int("of", f.count),
	)

	// Positional row ids (tr0, tr1, ...) are the target site's markup
	// contract; they are assumed stable across back-navigation even when
	// earlier indices were skipped.
	clickID := fmt.Sprintf("tr%d", i)
	err = RetryStale(ctx, w.logger, w.maxAttempts, "click item "+clickID, func(c context.Context) error {
		return w.browser.Click(c, clickID)
	})
	if err != nil {
		if browser.IsTimeout(err) {
			// The item never became interactable; treat it as absent.
			w.skipIndex(f, err)
			return false, nil
		}
		return false, fmt.Errorf("level %q item %d: %w", f.level.Name, i, err)
	}
	if err := w.browser.SwitchToFrame(ctx, w.mainFrame); err != nil {
		if browser.IsStale(err) {
			w.skipIndex(f, err)
			return false, nil
		}
		return false, fmt.Errorf("level %q item %d: %w", f.level.Name, i, err)
	}

	if f.level.NextLevel != "" {
		f.phase = phaseAwaitItem
		*stack = append(*stack, &frame{level: rt.Level(f.level.NextLevel), pctx: f.pctx.Clone()})
		return true, nil
	}

	// No deeper level: go straight back to the list for the next item.
	if err := w.returnToList(ctx, f); err != nil {
		if browser.IsStale(err) {
			w.skipIndex(f, err)
			return false, nil
		}
		return false, fmt.Errorf("level %q item %d: %w", f.level.Name, i, err)
	}
	f.idx++
	return false, nil
}

// returnToList navigates back to f's list view and re-enters the content
// frame after a brief settle delay.
func (w *Walker) returnToList(ctx context.Context, f *frame) error {
	w.logger.Debug("Returning to list view.", zap.String("level", f.level.Name))
	if err := w.browser.GoBack(ctx); err != nil {
		return err
	}
	if err := w.browser.Settle(ctx, w.settleDelay); err != nil {
		return err
	}
	return w.browser.SwitchToFrame(ctx, w.mainFrame)
}

// skipIndex abandons the current fan-out index after a transient failure.
// Partial coverage of a fanned-out list is an accepted degradation.
func (w *Walker) skipIndex(f *frame, err error) {
	w.logger.Warn("Transient failure; abandoning this item only.",
		zap.String("level", f.level.Name),
		zap.Int("index", f.idx),
		zap.Error(err),
	)
	f.idx++
	f.phase = phaseFanOut
}

// extractLeaf resolves the table's headers (once per run per table id)
// and reads all current rows, prefixing each with the ancestor path.
func (w *Walker) extractLeaf(ctx context.Context, f *frame) error {
	if f.level.TableID == "" {
		// A validated route cannot reach here; guard anyway.
		return fmt.Errorf("level %q is terminal but has no table id", f.level.Name)
	}
	if _, err := w.tables.ResolveHeaders(ctx, f.level.TableID); err != nil {
		return fmt.Errorf("level %q: %w", f.level.Name, err)
	}
	cells, err := w.tables.Rows(ctx, f.level.TableID)
	if err != nil {
		return fmt.Errorf("level %q: %w", f.level.Name, err)
	}
	prefix := f.pctx.Values()
	for _, row := range cells {
		full := make([]string, 0, len(prefix)+len(row))
		full = append(full, prefix...)
		full = append(full, row...)
		f.rows = append(f.rows, full)
	}
	w.logger.Info("Extracted table rows.", zap.String("table", f.level.TableID), zap.Int("rows", len(cells)))
	return nil
}

// drain collects the rows held by every suspended frame, root first, so
// an aborting walk still surrenders everything it gathered.
func (w *Walker) drain(stack []*frame, out [][]string) [][]string {
	for _, f := range stack {
		out = append(out, f.rows...)
	}
	return out
}
