package host

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

type recorder struct {
	calls [][]string
	err   error
}

func (r *recorder) start(name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

func TestIsOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if !New(WithProbeURL(srv.URL)).IsOnline(context.Background()) {
		t.Error("any response should count as online")
	}
}

func TestIsOnlineUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if New(WithProbeURL(url)).IsOnline(context.Background()) {
		t.Error("closed server should be offline")
	}
}

func TestIsOnlineTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	h := New(WithProbeURL(srv.URL), WithProbeTimeout(50*time.Millisecond))
	if h.IsOnline(context.Background()) {
		t.Error("hanging probe should report offline")
	}
}

func TestRestart(t *testing.T) {
	rec := &recorder{}
	exitCode := -1
	h := New(WithStarter(rec.start), WithExit(func(code int) { exitCode = code }), WithArgs([]string{"browse", "--all"}))
	h.executable = func() (string, error) { return "/usr/bin/marketctl", nil }

	if err := h.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	want := []string{"/usr/bin/marketctl", "browse", "--all"}
	if len(rec.calls) != 1 || !slices.Equal(rec.calls[0], want) {
		t.Errorf("calls = %v, want [%v]", rec.calls, want)
	}
}

func TestRestartLaunchFailureDoesNotExit(t *testing.T) {
	rec := &recorder{err: errors.New("permission denied")}
	exited := false
	h := New(WithStarter(rec.start), WithExit(func(int) { exited = true }))
	if err := h.Restart(); err == nil {
		t.Fatal("expected error")
	}
	if exited {
		t.Error("process exited although relaunch failed")
	}
}

func TestOpenExternal(t *testing.T) {
	tests := []struct {
		goos string
		want []string
	}{
		{"linux", []string{"xdg-open", "https://github.com/a/b"}},
		{"darwin", []string{"open", "https://github.com/a/b"}},
		{"windows", []string{"rundll32", "url.dll,FileProtocolHandler", "https://github.com/a/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			rec := &recorder{}
			h := New(WithStarter(rec.start))
			h.goos = tt.goos
			h.OpenExternal("https://github.com/a/b")
			if len(rec.calls) != 1 || !slices.Equal(rec.calls[0], tt.want) {
				t.Errorf("calls = %v, want [%v]", rec.calls, tt.want)
			}
		})
	}
}

func TestOpenExternalRejectsOtherSchemes(t *testing.T) {
	rec := &recorder{}
	h := New(WithStarter(rec.start))
	for _, u := range []string{"file:///etc/passwd", "javascript:alert(1)", "::"} {
		h.OpenExternal(u)
	}
	if len(rec.calls) != 0 {
		t.Errorf("unexpected launches: %v", rec.calls)
	}
	if err := h.openExternal("ftp://x"); !errors.Is(err, ErrUnsupportedURL) {
		t.Errorf("err = %v, want ErrUnsupportedURL", err)
	}
}
