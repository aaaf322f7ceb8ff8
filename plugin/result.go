package plugin

import (
	"context"
	"encoding/json"
	"errors"
)

// Kind classifies the outcome of a lifecycle operation.
type Kind string

const (
	KindOK             Kind = "ok"
	KindNotFound       Kind = "not-found"
	KindNetwork        Kind = "network"
	KindFilesystem     Kind = "filesystem"
	KindArchiveCorrupt Kind = "archive-corrupt"
	KindCanceled       Kind = "canceled"
)

// ErrNotInstalled is wrapped by NotFound results.
var ErrNotInstalled = errors.New("plugin not installed")

// Result is the outcome of install, uninstall or update. Failures carry the
// underlying error; nothing is ever raised past the operation boundary.
type Result struct {
	Kind Kind
	Err  error
}

// Success is the zero-error result.
var Success = Result{Kind: KindOK}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Kind == KindOK }

func (r Result) String() string {
	if r.Err == nil {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Err.Error()
}

// MarshalJSON renders {"ok":..,"kind":..,"error":..}.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		OK    bool   `json:"ok"`
		Kind  Kind   `json:"kind"`
		Error string `json:"error,omitempty"`
	}{OK: r.OK(), Kind: r.Kind}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// fail builds a failure of the given kind. Context cancellation and
// deadline errors always classify as canceled.
func fail(kind Kind, err error) Result {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCanceled
	}
	return Result{Kind: kind, Err: err}
}
