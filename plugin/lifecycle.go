package plugin

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/marketplace/journal"
	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/observability/tracing"
)

// Operation names used in logs, metrics, spans and the journal.
const (
	OpInstall   = "install"
	OpUninstall = "uninstall"
	OpUpdate    = "update"
)

// PackageInstaller installs one plugin.
type PackageInstaller interface {
	Install(ctx context.Context, m *manifest.Manifest) Result
}

// PackageRemover removes one plugin.
type PackageRemover interface {
	Uninstall(ctx context.Context, m *manifest.Manifest, updateMode bool) Result
}

// Event describes a finished operation.
type Event struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	Slug      string        `json:"slug"`
	Version   string        `json:"version"`
	Result    Result        `json:"result"`
	Duration  time.Duration `json:"duration"`
}

// Lifecycle serializes install, uninstall and update per slug and records
// each operation.
type Lifecycle struct {
	installer PackageInstaller
	remover   PackageRemover
	options

	mu        sync.RWMutex
	observers []func(Event)
}

// NewLifecycle creates a Lifecycle over the given installer and remover.
func NewLifecycle(installer PackageInstaller, remover PackageRemover, opts ...Option) *Lifecycle {
	return &Lifecycle{installer: installer, remover: remover, options: newOptions(opts)}
}

// OnResult registers fn to receive every finished operation.
func (l *Lifecycle) OnResult(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Install installs m.
func (l *Lifecycle) Install(ctx context.Context, m *manifest.Manifest) Result {
	return l.run(ctx, OpInstall, m, func(ctx context.Context) Result {
		return l.installer.Install(ctx, m)
	})
}

// Uninstall removes every path m owns.
func (l *Lifecycle) Uninstall(ctx context.Context, m *manifest.Manifest) Result {
	return l.run(ctx, OpUninstall, m, func(ctx context.Context) Result {
		return l.remover.Uninstall(ctx, m, false)
	})
}

// Update removes the plugin directory of m and installs m again. If the
// removal fails nothing is installed. If the install fails the plugin stays
// removed.
func (l *Lifecycle) Update(ctx context.Context, m *manifest.Manifest) Result {
	return l.run(ctx, OpUpdate, m, func(ctx context.Context) Result {
		if res := l.remover.Uninstall(ctx, m, true); !res.OK() {
			return res
		}
		return l.installer.Install(ctx, m)
	})
}

func (l *Lifecycle) run(ctx context.Context, op string, m *manifest.Manifest, fn func(context.Context) Result) Result {
	id := uuid.NewString()
	start := time.Now()
	log := l.logger.With("op", op, "op_id", id, "slug", m.Slug, "version", m.Version)

	ctx, span := l.tracer.StartOperation(ctx, op, m.Slug, id)
	defer l.metrics.OperationStarted()()

	var res Result
	release, err := l.leases.Acquire(ctx, m.Slug)
	if err != nil {
		res = fail(KindCanceled, err)
	} else {
		res = fn(ctx)
		release()
	}

	elapsed := time.Since(start)
	if res.OK() {
		log.Info("plugin operation finished", "duration", elapsed)
	} else {
		log.Warn("plugin operation failed", "result", res.Kind, "err", res.Err, "duration", elapsed)
	}
	l.metrics.RecordOperation(op, string(res.Kind), elapsed)
	tracing.End(span, res.Err)
	l.record(ctx, id, op, m, res, start)

	ev := Event{ID: id, Operation: op, Slug: m.Slug, Version: m.Version, Result: res, Duration: elapsed}
	l.mu.RLock()
	observers := append([]func(Event){}, l.observers...)
	l.mu.RUnlock()
	for _, fn := range observers {
		fn(ev)
	}
	return res
}

func (l *Lifecycle) record(ctx context.Context, id, op string, m *manifest.Manifest, res Result, start time.Time) {
	if l.journal == nil {
		return
	}
	e := journal.Entry{
		ID:         id,
		Slug:       m.Slug,
		Operation:  op,
		Version:    m.Version,
		Result:     string(res.Kind),
		StartedAt:  start,
		FinishedAt: time.Now(),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	// the caller's context may already be canceled; the record still belongs in history
	if err := l.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		l.logger.Warn("journal record failed", "op_id", id, "err", err)
	}
}
