package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/framewalk/internal/browser"
	"github.com/xkilldash9x/framewalk/internal/route"
	"github.com/xkilldash9x/framewalk/internal/sink"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeNav struct {
	selectByValue func(id, value string) error

	navigated []string
	selected  []string
	switches  int
}

func (n *fakeNav) Navigate(ctx context.Context, url string) error {
	n.navigated = append(n.navigated, url)
	return nil
}

func (n *fakeNav) SwitchToFrame(ctx context.Context, name string) error {
	n.switches++
	return nil
}

func (n *fakeNav) SelectByValue(ctx context.Context, id, value string) error {
	n.selected = append(n.selected, value)
	if n.selectByValue == nil {
		return nil
	}
	return n.selectByValue(id, value)
}

// fakeWalker returns canned rows keyed by call order.
type fakeWalker struct {
	walk  func(call int) ([][]string, error)
	calls int
}

func (w *fakeWalker) Walk(ctx context.Context, rt *route.Route, start string) ([][]string, error) {
	call := w.calls
	w.calls++
	return w.walk(call)
}

type fakeHeaders struct{ headers []string }

func (h *fakeHeaders) ResolvedHeaders() []string { return h.headers }

type fakeSink struct {
	saveErr error

	artifact string
	headers  []string
	rows     [][]string
	saves    int

	manifest sink.Manifest
	wrote    bool
}

func (s *fakeSink) Save(ctx context.Context, artifact string, headers []string, rows [][]string) error {
	s.saves++
	s.artifact = artifact
	s.headers = headers
	s.rows = rows
	return s.saveErr
}

func (s *fakeSink) WriteManifest(m sink.Manifest) error {
	s.wrote = true
	s.manifest = m
	return nil
}

func testSet(t *testing.T) *route.Set {
	t.Helper()
	set, err := route.Parse([]byte(`
start_url: "http://camef.example/portal"
main_frame: "frame0"
year_dropdown: "ddlYear"
routes:
  orders:
    artifact: "orders.xlsx"
    base_headers: ["Year", "Region"]
    levels:
      level_1:
        list_selector: "tr[id^='tr']"
        name_selector: "td:nth-child(2)"
        next_level: "level_2"
      level_2:
        table_id: "tblDetail"
`))
	require.NoError(t, err)
	return set
}

func newTestHarvester(nav *fakeNav, w *fakeWalker, out *fakeSink, set *route.Set) *Harvester {
	return New(nav, w, &fakeHeaders{headers: []string{"Period", "Amount"}}, out, set, zap.NewNop(), 3)
}

func TestRunTagsAndAggregatesPartitions(t *testing.T) {
	nav := &fakeNav{}
	w := &fakeWalker{walk: func(call int) ([][]string, error) {
		return [][]string{{fmt.Sprintf("row-%d", call), "x"}}, nil
	}}
	out := &fakeSink{}

	err := newTestHarvester(nav, w, out, testSet(t)).Run(context.Background(), "orders", []string{"2021", "2022"})
	require.NoError(t, err)

	assert.Equal(t, []string{"http://camef.example/portal"}, nav.navigated)
	assert.Equal(t, []string{"2021", "2022"}, nav.selected)
	assert.Equal(t, "orders.xlsx", out.artifact)
	assert.Equal(t, []string{"Year", "Region", "Period", "Amount"}, out.headers)

	want := [][]string{
		{"2021", "row-0", "x"},
		{"2022", "row-1", "x"},
	}
	if diff := cmp.Diff(want, out.rows); diff != "" {
		t.Fatalf("saved rows mismatch (-want +got):\n%s", diff)
	}

	require.True(t, out.wrote)
	assert.False(t, out.manifest.Partial)
	assert.Equal(t, 2, out.manifest.RowCount)
	assert.Equal(t, []string{"2021", "2022"}, out.manifest.Partitions)
	assert.NotEmpty(t, out.manifest.RunID)
}

func TestRunSavesPartialOnMidRunFailure(t *testing.T) {
	// Third partition fails after yielding some rows: everything gathered
	// so far, including the failing partition's rows, lands in the
	// partial-prefixed artifact, and the traversal error still surfaces.
	boom := errors.New("frame never reappeared")
	nav := &fakeNav{}
	w := &fakeWalker{walk: func(call int) ([][]string, error) {
		rows := [][]string{{fmt.Sprintf("row-%d", call)}}
		if call == 2 {
			return rows, boom
		}
		return rows, nil
	}}
	out := &fakeSink{}

	err := newTestHarvester(nav, w, out, testSet(t)).Run(context.Background(), "orders", []string{"2021", "2022", "2023"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "2023")

	assert.Equal(t, "parcial_orders.xlsx", out.artifact)
	want := [][]string{
		{"2021", "row-0"},
		{"2022", "row-1"},
		{"2023", "row-2"},
	}
	if diff := cmp.Diff(want, out.rows); diff != "" {
		t.Fatalf("partial rows mismatch (-want +got):\n%s", diff)
	}
	require.True(t, out.wrote)
	assert.True(t, out.manifest.Partial)
	assert.Contains(t, out.manifest.Error, boom.Error())
}

func TestRunSkipsSaveWhenNothingCollected(t *testing.T) {
	boom := errors.New("login page instead of portal")
	nav := &fakeNav{}
	w := &fakeWalker{walk: func(int) ([][]string, error) { return nil, boom }}
	out := &fakeSink{}

	err := newTestHarvester(nav, w, out, testSet(t)).Run(context.Background(), "orders", []string{"2021"})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, out.saves, "an empty partial artifact must not be written")
	assert.True(t, out.wrote, "the manifest records the failed run regardless")
	assert.True(t, out.manifest.Partial)
}

func TestRunRetriesStaleYearSelection(t *testing.T) {
	attempts := 0
	nav := &fakeNav{selectByValue: func(id, value string) error {
		attempts++
		if attempts == 1 {
			return fmt.Errorf("select %s: %w", id, browser.ErrStale)
		}
		return nil
	}}
	w := &fakeWalker{walk: func(int) ([][]string, error) { return [][]string{{"r"}}, nil }}
	out := &fakeSink{}

	err := newTestHarvester(nav, w, out, testSet(t)).Run(context.Background(), "orders", []string{"2021"})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []string{"2021", "2021"}, nav.selected)
}

func TestRunTraversalErrorOutranksSaveError(t *testing.T) {
	boom := errors.New("walk failed")
	nav := &fakeNav{}
	w := &fakeWalker{walk: func(int) ([][]string, error) { return [][]string{{"r"}}, boom }}
	out := &fakeSink{saveErr: errors.New("disk full")}

	err := newTestHarvester(nav, w, out, testSet(t)).Run(context.Background(), "orders", []string{"2021"})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, out.saveErr)
}

func TestRunUnknownRoute(t *testing.T) {
	err := newTestHarvester(&fakeNav{}, &fakeWalker{}, &fakeSink{}, testSet(t)).Run(context.Background(), "nope", []string{"2021"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders", "the error lists the available routes")
}
