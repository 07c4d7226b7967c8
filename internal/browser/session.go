// File: internal/browser/session.go
// Package browser wraps a single chromedp-driven Chrome tab behind the
// small set of primitives the traversal engine consumes: navigation,
// frame switching, element waits, clicks, dropdown selection and DOM
// reads. The browser is a shared mutable resource, so the session is
// strictly sequential; no method is safe for concurrent use.
//
// Every method classifies its failure into the stale/timeout/fatal
// taxonomy of errors.go before returning, so callers never inspect raw
// driver errors.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/framewalk/internal/config"
)

// Session owns one browser tab and tracks which content frame element
// queries are currently scoped to. A nil frame means the top document.
type Session struct {
	cfg    *config.Config
	logger *zap.Logger

	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	// frame is the <frame>/<iframe> element node queries are scoped to.
	// It goes stale on any navigation, so navigation methods reset it and
	// callers re-enter the frame via SwitchToFrame.
	frame *cdp.Node
}

// NewSession launches a browser and opens a fresh tab. The parent context
// bounds the whole session; cancelling it tears the browser down.
func NewSession(parent context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.Browser.WindowWidth, cfg.Browser.WindowHeight),
	)
	if !cfg.Browser.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.Browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Browser.ExecPath))
	}
	for _, arg := range cfg.Browser.Args {
		name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         cfg,
		logger:      logger.Named("browser"),
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	// Force the browser process to start now so launch failures surface
	// here rather than on the first interaction.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Quit()
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	s.logger.Info("Browser session started.",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.Int("width", cfg.Browser.WindowWidth),
		zap.Int("height", cfg.Browser.WindowHeight),
	)
	return s, nil
}

// run executes chromedp actions under a per-operation timeout derived
// from the session context. The caller context is checked up front; the
// session context is a child of the process signal context, so aborts
// still interrupt in-flight actions.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// frameOpts scopes a single-element query to the current content frame.
func (s *Session) frameOpts(extra ...chromedp.QueryOption) []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	return append(opts, extra...)
}

// frameAllOpts scopes a query-all to the current content frame.
func (s *Session) frameAllOpts(extra ...chromedp.QueryOption) []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	return append(opts, extra...)
}

// Navigate loads the given URL in the tab. Any frame scope is dropped;
// callers re-enter the content frame afterwards.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating.", zap.String("url", url))
	s.frame = nil
	err := s.run(ctx, s.cfg.Network.NavigationTimeout, chromedp.Navigate(url))
	return Classify(err, "navigate to "+url)
}

// SwitchToFrame re-enters the named content frame from the top document
// and waits for its body to be present, matching the target interface's
// frameset structure. The frame handle is re-resolved every time because
// the previous one goes stale on navigation.
func (s *Session) SwitchToFrame(ctx context.Context, name string) error {
	s.frame = nil
	sel := fmt.Sprintf(`frame[name=%q], iframe[name=%q]`, name, name)

	var nodes []*cdp.Node
	err := s.run(ctx, s.cfg.Network.FrameTimeout,
		chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(1)),
	)
	if err != nil {
		return Classify(err, "switch to frame "+name)
	}
	s.frame = nodes[0]

	// Verify the frame document is actually usable before any lookup.
	err = s.run(ctx, s.cfg.Network.FrameTimeout,
		chromedp.WaitReady("body", s.frameOpts()...),
	)
	if err != nil {
		s.frame = nil
		return Classify(err, "wait for body of frame "+name)
	}
	s.logger.Debug("Switched to frame.", zap.String("frame", name))
	return nil
}

// SwitchToDefaultContent drops the frame scope back to the top document.
func (s *Session) SwitchToDefaultContent(_ context.Context) error {
	s.frame = nil
	return nil
}

// CountItems waits for at least one element matching the list selector
// and returns how many are present. A timeout means the level has no
// content; the classified ErrTimeout lets the caller map that to zero
// items.
func (s *Session) CountItems(ctx context.Context, listSelector string) (int, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.cfg.Network.ElementTimeout,
		chromedp.Nodes(listSelector, &nodes, s.frameAllOpts()...),
	)
	if err != nil {
		return 0, Classify(err, "count items "+listSelector)
	}
	return len(nodes), nil
}

// LiveCount re-resolves the list without waiting and returns the current
// length. Used inside a fan-out iteration where the list may legally have
// shrunk to zero.
func (s *Session) LiveCount(ctx context.Context, listSelector string) (int, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.cfg.Network.ElementTimeout,
		chromedp.Nodes(listSelector, &nodes, s.frameAllOpts(chromedp.AtLeast(0))...),
	)
	if err != nil {
		return 0, Classify(err, "re-resolve list "+listSelector)
	}
	return len(nodes), nil
}

// ItemName re-resolves the full live list and reads the display name of
// the item at index via the relative name selector. The list is never
// cached across calls; a handle that survived a navigation would be
// stale. An index that fell off the shrunk list is reported as stale so
// the caller skips it.
func (s *Session) ItemName(ctx context.Context, listSelector string, index int, nameSelector string) (string, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.cfg.Network.ElementTimeout,
		chromedp.Nodes(listSelector, &nodes, s.frameAllOpts(chromedp.AtLeast(0))...),
	)
	if err != nil {
		return "", Classify(err, "resolve list "+listSelector)
	}
	if index >= len(nodes) {
		return "", fmt.Errorf("item %d of %s: list shrank to %d entries: %w", index, listSelector, len(nodes), ErrStale)
	}

	var name string
	err = s.run(ctx, s.cfg.Network.ElementTimeout,
		chromedp.Text(nameSelector, &name, chromedp.ByQuery, chromedp.FromNode(nodes[index])),
	)
	if err != nil {
		return "", Classify(err, fmt.Sprintf("read name of item %d", index))
	}
	return strings.TrimSpace(name), nil
}

// Click waits for the element with the given id to be enabled, then
// clicks it. The element is located from scratch on every call.
func (s *Session) Click(ctx context.Context, id string) error {
	sel := "#" + id
	err := s.run(ctx, s.cfg.Network.ElementTimeout,
		chromedp.WaitEnabled(sel, s.frameOpts()...),
		chromedp.Click(sel, s.frameOpts()...),
	)
	return Classify(err, "click "+sel)
}

// SelectByValue picks the option with the given value from the <select>
// element with the given id, firing the change event the target site
// relies on to reload its content frame.
func (s *Session) SelectByValue(ctx context.Context, id, value string) error {
	sel := "#" + id
	err := s.run(ctx, s.cfg.Network.ElementTimeout,
		chromedp.WaitEnabled(sel, s.frameOpts()...),
		chromedp.SetValue(sel, value, s.frameOpts()...),
	)
	return Classify(err, fmt.Sprintf("select %q in %s", value, sel))
}

// GoBack performs browser-level back navigation. The frame scope is
// dropped; callers re-enter the content frame once the page settles.
func (s *Session) GoBack(ctx context.Context) error {
	s.frame = nil
	err := s.run(ctx, s.cfg.Network.NavigationTimeout, chromedp.NavigateBack())
	return Classify(err, "navigate back")
}

// Settle waits for the DOM to stabilize after a navigation.
func (s *Session) Settle(ctx context.Context, d time.Duration) error {
	return s.run(ctx, d+time.Second, chromedp.Sleep(d))
}

// OuterHTML returns the serialized HTML of the element with the given id,
// scoped to the current frame.
func (s *Session) OuterHTML(ctx context.Context, id string) (string, error) {
	sel := "#" + id
	var html string
	err := s.run(ctx, s.cfg.Network.ElementTimeout,
		chromedp.OuterHTML(sel, &html, s.frameOpts()...),
	)
	if err != nil {
		return "", Classify(err, "read outer html of "+sel)
	}
	return html, nil
}

// Quit closes the tab and the browser process. Safe to call more than
// once.
func (s *Session) Quit() {
	if s.cancelTab != nil {
		s.cancelTab()
		s.cancelTab = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.cancelAlloc = nil
	}
	s.logger.Info("Browser session closed.")
}
