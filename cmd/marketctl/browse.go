package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/GoCodeAlone/marketplace/catalog"
	"github.com/GoCodeAlone/marketplace/config"
	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/plugin"
	"github.com/GoCodeAlone/marketplace/transport"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	statusStyles  = map[catalog.Status]lipgloss.Style{
		catalog.StatusNotInstalled: lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		catalog.StatusInstalled:    lipgloss.NewStyle().Foreground(lipgloss.Color("#777777")),
		catalog.StatusOutdated:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")),
	}
)

const browseHelp = "j/k move  n/p page  / search  enter act  o open  t type  s scope  m sort  r reverse  c columns  d density  g reload  q quit"

// operator runs plugin operations for the browser.
type operator interface {
	Install(ctx context.Context, m *manifest.Manifest) plugin.Result
	Uninstall(ctx context.Context, m *manifest.Manifest) plugin.Result
	Update(ctx context.Context, m *manifest.Manifest) plugin.Result
	OpenExternal(url string)
}

type loadedMsg struct{ err error }

type opDoneMsg struct {
	slug, op string
	res      plugin.Result
}

// browseModel is the interactive catalog view.
type browseModel struct {
	ctx  context.Context
	ops  operator
	ctrl *catalog.Controller

	snap      catalog.Snapshot
	cursor    int
	searching bool
	query     string
	busy      string // slug of the running operation
	status    string
	width     int
}

func newBrowseModel(ctx context.Context, ops operator, ctrl *catalog.Controller) *browseModel {
	return &browseModel{ctx: ctx, ops: ops, ctrl: ctrl, snap: ctrl.Snapshot()}
}

func (m *browseModel) Init() tea.Cmd { return m.load }

func (m *browseModel) load() tea.Msg {
	return loadedMsg{err: m.ctrl.Load(m.ctx)}
}

// reload fetches every mirror list and manifest again, bypassing the
// response cache.
func (m *browseModel) reload() tea.Msg {
	return loadedMsg{err: m.ctrl.Load(transport.Fresh(m.ctx))}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case loadedMsg:
		if msg.err != nil && !errors.Is(msg.err, catalog.ErrStale) {
			m.status = "load failed: " + msg.err.Error()
		}
		m.refresh()
	case opDoneMsg:
		m.busy = ""
		if msg.res.OK() {
			m.status = fmt.Sprintf("%s %s: done", msg.op, msg.slug)
		} else {
			m.status = fmt.Sprintf("%s %s failed: %s", msg.op, msg.slug, msg.res)
		}
		// statuses changed on disk
		m.ctrl.Rerender()
		m.refresh()
	case tea.KeyPressMsg:
		return m, m.handleKey(msg.String())
	}
	return m, nil
}

// handleKey applies one key press and returns the command to run, if any.
func (m *browseModel) handleKey(key string) tea.Cmd {
	if key == "ctrl+c" {
		return tea.Quit
	}
	if m.searching {
		m.handleSearchKey(key)
		return nil
	}

	var err error
	cfg := m.snap.Config
	switch key {
	case "q", "esc":
		return tea.Quit
	case "j", "down":
		m.move(1)
	case "k", "up":
		m.move(-1)
	case "n", "right", "pgdown":
		if m.ctrl.Next() {
			m.cursor = 0
		}
	case "p", "left", "pgup":
		if m.ctrl.Prev() {
			m.cursor = 0
		}
	case "/":
		m.searching = true
	case "enter":
		return m.operate()
	case "o":
		if item, ok := m.selected(); ok {
			m.ops.OpenExternal(item.DetailsURL)
		}
	case "t":
		err = m.ctrl.SetTypeFilter(cycle(typeChoices(), cfg.PluginType[0]))
	case "s":
		err = m.ctrl.SetScope(cycle([]string{config.ScopeAll, config.ScopeCurrent}, cfg.PluginType[1]))
	case "m":
		err = m.ctrl.SetStrategy(cycle([]string{config.StrategyRandom, config.StrategySequence}, cfg.SortOrder[0]))
	case "r":
		err = m.ctrl.SetDirection(cycle([]string{config.DirectionForward, config.DirectionReverse}, cfg.SortOrder[1]))
	case "c":
		err = m.ctrl.SetListStyle(cycle([]string{config.ColumnsSingle, config.ColumnsDouble}, cfg.ListStyle[0]), cfg.ListStyle[1])
	case "d":
		err = m.ctrl.SetListStyle(cfg.ListStyle[0], cycle([]string{config.DensityLoose, config.DensityCompact}, cfg.ListStyle[1]))
	case "g":
		m.status = "reloading"
		return m.reload
	default:
		return nil
	}
	if err != nil {
		m.status = "settings not saved: " + err.Error()
	}
	m.refresh()
	return nil
}

func (m *browseModel) handleSearchKey(key string) {
	switch key {
	case "enter", "esc":
		m.searching = false
		return
	case "backspace":
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case "space":
		m.query += " "
	default:
		if len([]rune(key)) != 1 {
			return
		}
		m.query += key
	}
	m.ctrl.SetSearch(m.query)
	m.cursor = 0
	m.refresh()
}

func (m *browseModel) refresh() {
	m.snap = m.ctrl.Snapshot()
	if n := len(m.snap.Page.Items); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m *browseModel) move(delta int) {
	n := len(m.snap.Page.Items)
	if n == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), n-1)
}

func (m *browseModel) selected() (catalog.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Page.Items) {
		return catalog.Item{}, false
	}
	return m.snap.Page.Items[m.cursor], true
}

// operate starts the selected item's action in the background. Only one
// operation runs at a time.
func (m *browseModel) operate() tea.Cmd {
	item, ok := m.selected()
	if !ok || m.busy != "" {
		return nil
	}
	mf, op := item.Manifest, item.Action
	m.busy = mf.Slug
	m.status = fmt.Sprintf("%s %s...", op, mf.Slug)
	ctx, ops := m.ctx, m.ops
	return func() tea.Msg {
		var res plugin.Result
		switch op {
		case plugin.OpUninstall:
			res = ops.Uninstall(ctx, mf)
		case plugin.OpUpdate:
			res = ops.Update(ctx, mf)
		default:
			res = ops.Install(ctx, mf)
		}
		return opDoneMsg{slug: mf.Slug, op: op, res: res}
	}
}

func (m *browseModel) View() tea.View {
	return tea.NewView(m.render())
}

func (m *browseModel) render() string {
	var b strings.Builder
	cfg := m.snap.Config
	b.WriteString(titleStyle.Render("Plugin Marketplace"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  type=%s scope=%s sort=%s/%s",
		cfg.PluginType[0], cfg.PluginType[1], cfg.SortOrder[0], cfg.SortOrder[1])))
	b.WriteString("\n")
	if m.searching || m.query != "" {
		cursor := ""
		if m.searching {
			cursor = "_"
		}
		fmt.Fprintf(&b, "search: %s%s\n", m.query, cursor)
	}
	b.WriteString("\n")

	switch m.snap.State {
	case catalog.StateLoading:
		b.WriteString("Loading catalog...\n")
	case catalog.StateOffline:
		b.WriteString(errorStyle.Render("Offline. Press g to retry.") + "\n")
	case catalog.StateError:
		b.WriteString(errorStyle.Render("Catalog error: "+m.snap.Error) + "\n")
	default:
		b.WriteString(m.renderItems())
		fmt.Fprintf(&b, "\nPage %d/%d, %d matched\n", m.snap.Page.Number, m.snap.Page.Total, m.snap.Page.Matched)
	}

	if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString(dimStyle.Render(browseHelp))
	return b.String()
}

func (m *browseModel) renderItems() string {
	items := m.snap.Page.Items
	if len(items) == 0 {
		return "No plugins match.\n"
	}
	loose := m.snap.Config.ListStyle[1] != config.DensityCompact
	cells := make([]string, len(items))
	for i, item := range items {
		cells[i] = m.renderItem(i, item, loose)
	}
	if m.snap.Config.ListStyle[0] != config.ColumnsDouble {
		return strings.Join(cells, "\n") + "\n"
	}

	colWidth := 40
	if m.width > 0 {
		colWidth = max(20, m.width/2-1)
	}
	col := lipgloss.NewStyle().Width(colWidth)
	var rows []string
	for i := 0; i < len(cells); i += 2 {
		left := col.Render(cells[i])
		right := ""
		if i+1 < len(cells) {
			right = col.Render(cells[i+1])
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	}
	return strings.Join(rows, "\n") + "\n"
}

func (m *browseModel) renderItem(i int, item catalog.Item, loose bool) string {
	mf := item.Manifest
	name := fmt.Sprintf("%s %s", mf.Name, mf.Version)
	if i == m.cursor {
		name = selectedStyle.Render(name)
	}
	status := string(item.Status)
	if m.busy == mf.Slug {
		status = "working"
	}
	line := fmt.Sprintf("%s  %s  %s", name, dimStyle.Render(item.TypeLabel), statusStyles[item.Status].Render(status))
	if !loose {
		return line
	}
	var extra []string
	if mf.Description != "" {
		extra = append(extra, "  "+oneLine(mf.Description))
	}
	meta := item.PlatformText()
	if item.Author.Name != "" {
		meta = strings.TrimSpace(meta + "  by " + item.Author.Name)
	}
	if meta != "" {
		extra = append(extra, "  "+dimStyle.Render(meta))
	}
	return strings.Join(append([]string{line}, extra...), "\n")
}

func typeChoices() []string {
	out := []string{config.TypeAll}
	for _, t := range manifest.Types {
		out = append(out, string(t))
	}
	return out
}

// cycle returns the value after current in values, wrapping around.
func cycle(values []string, current string) string {
	i := slices.Index(values, current)
	return values[(i+1)%len(values)]
}

func runBrowse(args []string) error {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	g := addGlobalFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: marketctl browse [options]\n\nBrowse, install and remove plugins interactively.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, _, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	_, err = tea.NewProgram(newBrowseModel(ctx, svc, svc.Catalog())).Run()
	return err
}
