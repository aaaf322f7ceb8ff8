package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GoCodeAlone/marketplace/api"
	"github.com/GoCodeAlone/marketplace/catalog"
	"github.com/GoCodeAlone/marketplace/config"
	"github.com/GoCodeAlone/marketplace/journal"
	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/plugin"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"list", "install", "uninstall", "update", "config", "history", "serve", "browse", "restart", "open"} {
		if _, ok := commands[name]; !ok {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestApplySettings(t *testing.T) {
	cfg, err := applySettings(config.Default(), []string{
		"mirrorlist=https://a.example/list.json, https://b.example/list.json",
		"type=theme",
		"direction=reverse",
		"density=compact",
	})
	if err != nil {
		t.Fatalf("applySettings: %v", err)
	}
	if len(cfg.MirrorList) != 2 || cfg.MirrorList[1] != "https://b.example/list.json" {
		t.Errorf("mirrorlist = %v", cfg.MirrorList)
	}
	if cfg.PluginType[0] != "theme" || cfg.SortOrder[1] != config.DirectionReverse || cfg.ListStyle[1] != config.DensityCompact {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestApplySettingsErrors(t *testing.T) {
	tests := map[string]string{
		"missing equals": "type",
		"unknown key":    "colour=red",
		"invalid value":  "sort=alphabetical",
	}
	for name, pair := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := applySettings(config.Default(), []string{pair}); err == nil {
				t.Errorf("applySettings(%q) succeeded", pair)
			}
		})
	}
}

func TestApplySettingsDoesNotAliasInput(t *testing.T) {
	base := config.Default()
	if _, err := applySettings(base, []string{"mirrorlist=https://x.example/l.json"}); err != nil {
		t.Fatal(err)
	}
	if base.MirrorList[0] != config.DefaultMirrorList {
		t.Errorf("input config modified: %v", base.MirrorList)
	}
}

func TestViewFlagsApply(t *testing.T) {
	v := &viewFlags{typ: "core", scope: "linux"}
	cfg, err := v.apply(config.Default())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.PluginType != [2]string{"core", "linux"} {
		t.Errorf("plugin_type = %v", cfg.PluginType)
	}
	if cfg.SortOrder != config.Default().SortOrder {
		t.Errorf("sort_order changed: %v", cfg.SortOrder)
	}

	v = &viewFlags{strategy: "shuffle"}
	if _, err := v.apply(config.Default()); err == nil {
		t.Error("expected invalid strategy to fail")
	}
}

func TestCycle(t *testing.T) {
	values := []string{"a", "b", "c"}
	if got := cycle(values, "a"); got != "b" {
		t.Errorf("cycle(a) = %s", got)
	}
	if got := cycle(values, "c"); got != "a" {
		t.Errorf("cycle(c) = %s", got)
	}
	if got := cycle(values, "zzz"); got != "a" {
		t.Errorf("cycle(unknown) = %s", got)
	}
}

func sampleCatalog(n int) []*manifest.Manifest {
	out := make([]*manifest.Manifest, n)
	for i := range out {
		slug := fmt.Sprintf("plugin-%02d", i)
		typ := manifest.TypeExtension
		if i%2 == 1 {
			typ = manifest.TypeTheme
		}
		out[i] = &manifest.Manifest{
			Slug:        slug,
			Name:        "Plugin " + slug,
			Description: "Does  thing\nnumber " + slug,
			Version:     "1.0.0",
			Type:        typ,
			Platform:    []string{"linux", "win32"},
			Authors:     manifest.Authors{{Name: "Ada"}},
			Repository:  manifest.Repository{Repo: "owner/" + slug, Branch: "main"},
		}
	}
	return out
}

func newTestController(t *testing.T, n int) *catalog.Controller {
	t.Helper()
	cfg := config.Default()
	cfg.PluginType = [2]string{config.TypeAll, config.ScopeAll}
	cfg.SortOrder = [2]string{config.StrategySequence, config.DirectionForward}
	ms := sampleCatalog(n)
	ctrl := catalog.NewController(config.NewSession(config.NewMemoryStore(&cfg), nil),
		func(context.Context) ([]*manifest.Manifest, error) { return ms, nil })
	ctrl.SetCatalog(ms)
	return ctrl
}

func TestRenderPage(t *testing.T) {
	ctrl := newTestController(t, 12)
	var buf bytes.Buffer
	renderPage(&buf, ctrl.Snapshot())
	out := buf.String()

	if !strings.Contains(out, "plugin-00") || !strings.Contains(out, "plugin-09") {
		t.Errorf("first page rows missing:\n%s", out)
	}
	if strings.Contains(out, "plugin-10") {
		t.Errorf("second page row rendered on page 1:\n%s", out)
	}
	if !strings.Contains(out, "Does thing number plugin-00") {
		t.Errorf("loose density should flatten the description:\n%s", out)
	}
	if !strings.Contains(out, "Linux | Windows") {
		t.Errorf("platforms missing:\n%s", out)
	}
	if !strings.Contains(out, "Page 1/2, 12 matched") {
		t.Errorf("footer missing:\n%s", out)
	}
}

func TestRenderPageEmptyAndError(t *testing.T) {
	var buf bytes.Buffer
	renderPage(&buf, catalog.Snapshot{State: catalog.StateEnd})
	if !strings.Contains(buf.String(), "No plugins match") {
		t.Errorf("empty output = %q", buf.String())
	}
	buf.Reset()
	renderPage(&buf, catalog.Snapshot{State: catalog.StateError, Error: "boom"})
	if !strings.Contains(buf.String(), "catalog error: boom") {
		t.Errorf("error output = %q", buf.String())
	}
}

func TestRenderHistory(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	renderHistory(&buf, []journal.Entry{{
		Slug:       "pm",
		Operation:  plugin.OpInstall,
		Version:    "1.0.0",
		Result:     string(plugin.KindNetwork),
		Error:      "status 404",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}})
	out := buf.String()
	for _, want := range []string{"pm", "install", "network (status 404)", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

type fakeOps struct {
	mu     sync.Mutex
	calls  []string
	opened []string
}

func (f *fakeOps) record(op string, m *manifest.Manifest) plugin.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+m.Slug)
	return plugin.Success
}

func (f *fakeOps) Install(_ context.Context, m *manifest.Manifest) plugin.Result {
	return f.record(plugin.OpInstall, m)
}

func (f *fakeOps) Uninstall(_ context.Context, m *manifest.Manifest) plugin.Result {
	return f.record(plugin.OpUninstall, m)
}

func (f *fakeOps) Update(_ context.Context, m *manifest.Manifest) plugin.Result {
	return f.record(plugin.OpUpdate, m)
}

func (f *fakeOps) OpenExternal(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
}

func TestBrowseNavigation(t *testing.T) {
	ctrl := newTestController(t, 25)
	m := newBrowseModel(context.Background(), &fakeOps{}, ctrl)

	m.handleKey("j")
	m.handleKey("j")
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.cursor)
	}
	m.handleKey("k")
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}

	m.handleKey("n")
	m.handleKey("n")
	if m.snap.Page.Number != 3 || len(m.snap.Page.Items) != 5 {
		t.Errorf("page = %d with %d items", m.snap.Page.Number, len(m.snap.Page.Items))
	}
	if m.cursor != 0 {
		t.Errorf("cursor not reset on page change: %d", m.cursor)
	}
	m.handleKey("n")
	if m.snap.Page.Number != 3 {
		t.Errorf("paged past the end: %d", m.snap.Page.Number)
	}

	for range 10 {
		m.handleKey("j")
	}
	if m.cursor != 4 {
		t.Errorf("cursor = %d, want clamp at 4", m.cursor)
	}
}

func TestBrowseSearchAndFilters(t *testing.T) {
	ctrl := newTestController(t, 25)
	m := newBrowseModel(context.Background(), &fakeOps{}, ctrl)

	m.handleKey("/")
	for _, k := range []string{"P", "L", "U", "G", "I", "N", "-", "1", "x", "backspace"} {
		m.handleKey(k)
	}
	m.handleKey("enter")
	if m.searching || m.query != "PLUGIN-1" {
		t.Fatalf("search state = %v %q", m.searching, m.query)
	}
	if m.snap.Page.Matched != 10 { // plugin-10..plugin-19
		t.Errorf("matched = %d, want 10", m.snap.Page.Matched)
	}

	m.handleKey("t") // all -> core
	if m.snap.Config.PluginType[0] != string(manifest.TypeCore) || m.snap.Page.Matched != 0 {
		t.Errorf("type filter = %s matched %d", m.snap.Config.PluginType[0], m.snap.Page.Matched)
	}
	m.handleKey("t") // core -> extension
	if m.snap.Page.Matched != 5 {
		t.Errorf("extensions matched = %d, want 5", m.snap.Page.Matched)
	}

	m.handleKey("r")
	if m.snap.Config.SortOrder[1] != config.DirectionReverse {
		t.Errorf("direction = %s", m.snap.Config.SortOrder[1])
	}
	m.handleKey("c")
	if m.snap.Config.ListStyle[0] != config.ColumnsDouble {
		t.Errorf("columns = %s", m.snap.Config.ListStyle[0])
	}
	if out := m.render(); !strings.Contains(out, "Plugin Marketplace") {
		t.Errorf("render missing title:\n%s", out)
	}
}

func TestBrowseOperateAndOpen(t *testing.T) {
	ctrl := newTestController(t, 3)
	ops := &fakeOps{}
	m := newBrowseModel(context.Background(), ops, ctrl)

	m.handleKey("j")
	m.handleKey("o")
	if len(ops.opened) != 1 || !strings.HasSuffix(ops.opened[0], "/owner/plugin-01/tree/main") {
		t.Errorf("opened = %v", ops.opened)
	}

	cmd := m.handleKey("enter")
	if cmd == nil {
		t.Fatal("enter returned no command")
	}
	if m.handleKey("enter") != nil {
		t.Error("second operation started while one is running")
	}
	msg := cmd()
	done, ok := msg.(opDoneMsg)
	if !ok {
		t.Fatalf("msg = %T", msg)
	}
	if done.op != plugin.OpInstall || done.slug != "plugin-01" {
		t.Errorf("done = %+v", done)
	}
	m.Update(done)
	if m.busy != "" || !strings.Contains(m.status, "done") {
		t.Errorf("after completion busy=%q status=%q", m.busy, m.status)
	}
	if len(ops.calls) != 1 || ops.calls[0] != "install:plugin-01" {
		t.Errorf("calls = %v", ops.calls)
	}
}

type fakeResults struct {
	fns []func(plugin.Event)
}

func (f *fakeResults) OnResult(fn func(plugin.Event)) { f.fns = append(f.fns, fn) }

func TestBridgeResultKeepsPage(t *testing.T) {
	ctrl := newTestController(t, 25)
	results := &fakeResults{}
	bridge(ctrl, results, api.NewHub(nil))
	if len(results.fns) != 1 {
		t.Fatalf("result subscribers = %d", len(results.fns))
	}
	if !ctrl.GoTo(3) {
		t.Fatal("GoTo(3) failed")
	}

	var rendered []int
	ctrl.OnRender(func(s catalog.Snapshot) { rendered = append(rendered, s.Page.Number) })
	results.fns[0](plugin.Event{Operation: plugin.OpInstall, Slug: "plugin-21", Result: plugin.Success})

	if got := ctrl.Snapshot().Page.Number; got != 3 {
		t.Errorf("page after result = %d, want 3", got)
	}
	if len(rendered) != 1 || rendered[0] != 3 {
		t.Errorf("renders = %v, want [3]", rendered)
	}
}

func TestBrowseOperationKeepsPage(t *testing.T) {
	ctrl := newTestController(t, 25)
	m := newBrowseModel(context.Background(), &fakeOps{}, ctrl)
	m.handleKey("n")
	m.handleKey("n")
	m.handleKey("j")

	cmd := m.handleKey("enter")
	if cmd == nil {
		t.Fatal("enter returned no command")
	}
	m.Update(cmd())
	if m.snap.Page.Number != 3 || m.cursor != 1 {
		t.Errorf("after operation page=%d cursor=%d, want 3 and 1", m.snap.Page.Number, m.cursor)
	}
}
