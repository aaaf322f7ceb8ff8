// Package catalog turns a resolved manifest catalog into pages: it filters by
// search text, platform and type, orders by a random or arrival sequence in
// either direction, splits the result into fixed pages and broadcasts the
// render state to subscribers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/GoCodeAlone/marketplace/config"
	"github.com/GoCodeAlone/marketplace/manifest"
)

// PageSize is the number of items on one page.
const PageSize = 10

// State is the list status shown next to the rendered page.
type State string

const (
	StateOffline State = "offline"
	StateLoading State = "loading"
	StateError   State = "error"
	StateEnd     State = "end"
)

// Loader produces the raw catalog.
type Loader func(ctx context.Context) ([]*manifest.Manifest, error)

// OnlineCheck reports network reachability.
type OnlineCheck func(ctx context.Context) bool

// ErrStale is returned by Load when a newer load superseded it.
var ErrStale = errors.New("catalog: load superseded")

// Page is one rendered page. Number is 0 when nothing matched.
type Page struct {
	Number  int    `json:"number"`
	Total   int    `json:"total"`
	Matched int    `json:"matched"`
	Items   []Item `json:"items"`
}

// Snapshot is the full render output.
type Snapshot struct {
	State  State         `json:"state"`
	Error  string        `json:"error,omitempty"`
	Search string        `json:"search"`
	Config config.Config `json:"config"`
	Page   Page          `json:"page"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPresenter sets how items are rendered.
func WithPresenter(p *Presenter) Option {
	return func(c *Controller) { c.presenter = p }
}

// WithOnlineCheck sets the reachability probe run before each load.
func WithOnlineCheck(fn OnlineCheck) Option {
	return func(c *Controller) { c.online = fn }
}

// WithPlatform overrides the token "current" resolves to.
func WithPlatform(token string) Option {
	return func(c *Controller) { c.platform = token }
}

// WithSeed makes random ordering reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Controller) { c.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// Controller owns the list state for one session.
type Controller struct {
	session   *config.Session
	loader    Loader
	online    OnlineCheck
	presenter *Presenter
	platform  string
	logger    *slog.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	gen     uint64
	catalog []*manifest.Manifest
	perm    []int // random order over catalog, nil until drawn
	search  string
	view    []*manifest.Manifest
	page    int
	state   State
	err     error
	seq     uint64 // numbers publications in the order they were computed

	// pubMu orders delivery; published is the last seq delivered.
	pubMu     sync.Mutex
	published uint64

	subMu      sync.RWMutex
	stateSubs  []func(State)
	renderSubs []func(Snapshot)
}

// NewController creates a controller over session. loader is called by Load.
func NewController(session *config.Session, loader Loader, opts ...Option) *Controller {
	c := &Controller{
		session:   session,
		loader:    loader,
		presenter: &Presenter{},
		platform:  manifest.HostPlatform(),
		logger:    slog.Default(),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		state:     StateLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnState subscribes fn to state transitions. Callbacks run one at a time
// in the order the controller changed; a render superseded by a newer one
// before delivery is dropped. Callbacks must not call the controller's
// mutating methods.
func (c *Controller) OnState(fn func(State)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.stateSubs = append(c.stateSubs, fn)
}

// OnRender subscribes fn to rendered snapshots.
func (c *Controller) OnRender(fn func(Snapshot)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.renderSubs = append(c.renderSubs, fn)
}

// Load fetches a fresh catalog and renders page 1. When another Load starts
// before this one finishes, this one's result is discarded and ErrStale is
// returned.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if c.online != nil && !c.online(ctx) {
		if c.transition(gen, StateOffline) {
			c.logger.Info("catalog offline, load skipped")
		}
		return nil
	}
	c.transition(gen, StateLoading)

	ms, err := c.loader(ctx)
	if err != nil {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return ErrStale
		}
		c.state, c.err = StateError, err
		snap, seq := c.snapshotLocked(), c.stampLocked()
		c.mu.Unlock()
		c.logger.Warn("catalog load failed", "err", err)
		c.broadcast(seq, snap)
		return err
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale catalog load", "generation", gen)
		return ErrStale
	}
	c.catalog = Dedupe(ms)
	c.perm = nil
	unique := len(c.catalog)
	snap, seq := c.recomputeLocked(), c.stampLocked()
	c.mu.Unlock()

	c.logger.Info("catalog loaded", "manifests", len(ms), "unique", unique, "matched", snap.Page.Matched)
	c.broadcast(seq, snap)
	return nil
}

// SetCatalog replaces the catalog without fetching.
func (c *Controller) SetCatalog(ms []*manifest.Manifest) {
	c.mu.Lock()
	c.gen++
	c.catalog = Dedupe(ms)
	c.perm = nil
	snap, seq := c.recomputeLocked(), c.stampLocked()
	c.mu.Unlock()
	c.broadcast(seq, snap)
}

// SetSearch filters names by text, ignoring case.
func (c *Controller) SetSearch(text string) {
	c.mu.Lock()
	c.search = text
	snap, seq := c.recomputeLocked(), c.stampLocked()
	c.mu.Unlock()
	c.broadcast(seq, snap)
}

// SetTypeFilter shows only one plugin type, or every type for "all".
func (c *Controller) SetTypeFilter(value string) error {
	return c.change(func(cfg *config.Config) { cfg.PluginType[0] = value }, false)
}

// SetScope filters by platform: "all", "current" or a platform token.
func (c *Controller) SetScope(value string) error {
	return c.change(func(cfg *config.Config) { cfg.PluginType[1] = value }, false)
}

// SetStrategy selects "random" or "sequence". Selecting "random" draws a new
// order even when it was already selected.
func (c *Controller) SetStrategy(value string) error {
	return c.change(func(cfg *config.Config) { cfg.SortOrder[0] = value }, true)
}

// SetDirection selects "forward" or "reverse".
func (c *Controller) SetDirection(value string) error {
	return c.change(func(cfg *config.Config) { cfg.SortOrder[1] = value }, false)
}

// SetListStyle sets the column and density preferences.
func (c *Controller) SetListStyle(columns, density string) error {
	return c.change(func(cfg *config.Config) { cfg.ListStyle = [2]string{columns, density} }, false)
}

// ApplyConfig adopts a configuration that changed outside the controller.
// Unlike the setters it does not validate: an unknown value puts the list
// in the error state until a valid one arrives.
func (c *Controller) ApplyConfig(cfg config.Config) {
	c.session.Replace(cfg)
	c.mu.Lock()
	snap, seq := c.recomputeLocked(), c.stampLocked()
	c.mu.Unlock()
	c.broadcast(seq, snap)
}

// Rerender rebuilds the current page with fresh install statuses. The
// filtered order and the page number are kept; the page is clamped when the
// view shrank.
func (c *Controller) Rerender() {
	c.mu.Lock()
	page := c.page
	c.rebuildLocked()
	if page > 1 {
		c.page = min(page, pageCount(len(c.view)))
	}
	snap, seq := c.snapshotLocked(), c.stampLocked()
	c.mu.Unlock()
	c.broadcast(seq, snap)
}

// change persists the mutated config, then recomputes from page 1. A value
// outside the accepted set is rejected with an error wrapping
// config.ErrInvalid and changes nothing. A failed save is returned but the
// new value still applies.
func (c *Controller) change(fn func(*config.Config), reshuffle bool) error {
	_, saveErr := c.session.Update(fn)
	if errors.Is(saveErr, config.ErrInvalid) {
		return saveErr
	}

	c.mu.Lock()
	if reshuffle {
		c.perm = nil
	}
	snap, seq := c.recomputeLocked(), c.stampLocked()
	c.mu.Unlock()
	c.broadcast(seq, snap)

	if saveErr != nil {
		return fmt.Errorf("persist config: %w", saveErr)
	}
	return nil
}

// GoTo shows page n. Out of range pages are ignored and report false.
func (c *Controller) GoTo(n int) bool {
	c.mu.Lock()
	if n < 1 || n > pageCount(len(c.view)) {
		c.mu.Unlock()
		return false
	}
	if n == c.page {
		c.mu.Unlock()
		return true
	}
	c.page = n
	snap, seq := c.snapshotLocked(), c.stampLocked()
	c.mu.Unlock()
	c.broadcast(seq, snap)
	return true
}

// Next moves one page forward.
func (c *Controller) Next() bool {
	c.mu.Lock()
	n := c.page + 1
	c.mu.Unlock()
	return c.GoTo(n)
}

// Prev moves one page back.
func (c *Controller) Prev() bool {
	c.mu.Lock()
	n := c.page - 1
	c.mu.Unlock()
	return c.GoTo(n)
}

// Snapshot returns the current render output.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current render state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Find returns the catalog manifest with the given slug.
func (c *Controller) Find(slug string) (*manifest.Manifest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.catalog, func(m *manifest.Manifest) bool { return m.Slug == slug })
	if i < 0 {
		return nil, false
	}
	return c.catalog[i], true
}

// Visible returns the full filtered and ordered sequence.
func (c *Controller) Visible() []*manifest.Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.view)
}

func (c *Controller) transition(gen uint64, s State) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.state, c.err = s, nil
	seq := c.stampLocked()
	c.mu.Unlock()
	c.publish(seq, s, nil)
	return true
}

// recomputeLocked rebuilds the visible sequence from scratch, resets to
// page 1 and returns the new snapshot.
func (c *Controller) recomputeLocked() Snapshot {
	c.rebuildLocked()
	return c.snapshotLocked()
}

func (c *Controller) rebuildLocked() {
	view, err := c.pipeline(c.session.Get())
	if err != nil {
		c.view, c.page = nil, 0
		c.state, c.err = StateError, err
		c.logger.Warn("catalog pipeline failed", "err", err)
		return
	}
	c.view = view
	c.page = 0
	if len(view) > 0 {
		c.page = 1
	}
	c.state, c.err = StateEnd, nil
}

func (c *Controller) pipeline(cfg config.Config) ([]*manifest.Manifest, error) {
	keep, err := c.filter(cfg)
	if err != nil {
		return nil, err
	}

	var ordered []*manifest.Manifest
	switch cfg.Strategy() {
	case config.StrategyRandom:
		if len(c.perm) != len(c.catalog) {
			c.perm = c.rng.Perm(len(c.catalog))
		}
		ordered = make([]*manifest.Manifest, 0, len(c.catalog))
		for _, i := range c.perm {
			ordered = append(ordered, c.catalog[i])
		}
	case config.StrategySequence:
		ordered = slices.Clone(c.catalog)
	default:
		return nil, fmt.Errorf("unknown sort strategy %q", cfg.Strategy())
	}

	out := ordered[:0]
	for _, m := range ordered {
		if keep(m) {
			out = append(out, m)
		}
	}

	switch cfg.Direction() {
	case config.DirectionForward:
	case config.DirectionReverse:
		slices.Reverse(out)
	default:
		return nil, fmt.Errorf("unknown sort direction %q", cfg.Direction())
	}
	return out, nil
}

func (c *Controller) filter(cfg config.Config) (func(*manifest.Manifest) bool, error) {
	typ := cfg.TypeFilter()
	if typ != config.TypeAll && !slices.Contains(manifest.Types, manifest.Type(typ)) {
		return nil, fmt.Errorf("unknown type filter %q", typ)
	}

	platform := cfg.Scope()
	switch {
	case platform == config.ScopeAll:
		platform = ""
	case platform == config.ScopeCurrent:
		platform = c.platform
	case !manifest.KnownPlatform(platform):
		return nil, fmt.Errorf("unknown platform scope %q", platform)
	}

	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(c.search))

	return func(m *manifest.Manifest) bool {
		if typ != config.TypeAll && string(m.Type) != typ {
			return false
		}
		if platform != "" && !m.SupportsPlatform(platform) {
			return false
		}
		return needle == "" || strings.Contains(fold.String(m.Name), needle)
	}, nil
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:  c.state,
		Search: c.search,
		Config: c.session.Get(),
		Page: Page{
			Number:  c.page,
			Total:   pageCount(len(c.view)),
			Matched: len(c.view),
			Items:   []Item{},
		},
	}
	if c.err != nil {
		snap.Error = c.err.Error()
	}
	if c.page > 0 {
		start := (c.page - 1) * PageSize
		end := min(start+PageSize, len(c.view))
		snap.Page.Items = c.presenter.PresentAll(c.view[start:end])
	}
	return snap
}

func (c *Controller) stampLocked() uint64 {
	c.seq++
	return c.seq
}

func (c *Controller) broadcast(seq uint64, snap Snapshot) {
	c.publish(seq, snap.State, &snap)
}

// publish delivers a state and, when snap is set, a render. Anything older
// than what subscribers already saw is dropped.
func (c *Controller) publish(seq uint64, s State, snap *Snapshot) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if seq <= c.published {
		return
	}
	c.published = seq

	c.subMu.RLock()
	stateSubs, renderSubs := slices.Clone(c.stateSubs), slices.Clone(c.renderSubs)
	c.subMu.RUnlock()
	for _, fn := range stateSubs {
		fn(s)
	}
	if snap == nil {
		return
	}
	for _, fn := range renderSubs {
		fn(*snap)
	}
}

func pageCount(n int) int {
	return (n + PageSize - 1) / PageSize
}
