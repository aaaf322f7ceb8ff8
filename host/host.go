// Package host wraps the process-level operations the marketplace needs from
// its environment: reachability checks, relaunching the process and handing
// URLs to the system browser.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// DefaultProbeURL is requested by IsOnline.
const DefaultProbeURL = "https://github.com"

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// ErrUnsupportedURL is returned by OpenExternal for non-web URLs.
var ErrUnsupportedURL = errors.New("host: only http and https URLs can be opened")

// Starter launches a detached command.
type Starter func(name string, args ...string) error

// Option configures a Host.
type Option func(*Host)

// WithProbeURL sets the URL IsOnline requests.
func WithProbeURL(u string) Option {
	return func(h *Host) { h.probeURL = u }
}

// WithProbeTimeout bounds each reachability probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(h *Host) { h.probeTimeout = d }
}

// WithHTTPClient sets the client used for probes.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Host) { h.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithStarter replaces how child processes are launched.
func WithStarter(s Starter) Option {
	return func(h *Host) { h.start = s }
}

// WithExit replaces os.Exit.
func WithExit(fn func(code int)) Option {
	return func(h *Host) { h.exit = fn }
}

// WithArgs sets the arguments the relaunched process receives.
// Defaults to os.Args[1:].
func WithArgs(args []string) Option {
	return func(h *Host) { h.args = args }
}

// Host is the process environment.
type Host struct {
	probeURL     string
	probeTimeout time.Duration
	client       *http.Client
	logger       *slog.Logger
	start        Starter
	exit         func(int)
	executable   func() (string, error)
	goos         string
	args         []string
}

// New creates a Host for the running process.
func New(opts ...Option) *Host {
	h := &Host{
		probeURL:     DefaultProbeURL,
		probeTimeout: DefaultProbeTimeout,
		client:       http.DefaultClient,
		logger:       slog.Default(),
		start:        startDetached,
		exit:         os.Exit,
		executable:   os.Executable,
		goos:         runtime.GOOS,
	}
	if len(os.Args) > 1 {
		h.args = os.Args[1:]
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsOnline reports whether the probe URL answers at all. Any HTTP response,
// whatever its status, counts as online.
func (h *Host) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.probeURL, nil)
	if err != nil {
		h.logger.Warn("online probe: bad URL", "url", h.probeURL, "err", err)
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("online probe failed", "url", h.probeURL, "err", err)
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Restart launches a fresh copy of the running executable with the same
// arguments and exits the current process. It only returns when the
// relaunch could not be started.
func (h *Host) Restart() error {
	exe, err := h.executable()
	if err != nil {
		return fmt.Errorf("restart: find executable: %w", err)
	}
	if err := h.start(exe, h.args...); err != nil {
		return fmt.Errorf("restart: launch %s: %w", exe, err)
	}
	h.logger.Info("relaunched, exiting", "executable", exe)
	h.exit(0)
	return nil
}

// OpenExternal hands rawURL to the system browser without waiting for it.
// Failures are logged.
func (h *Host) OpenExternal(rawURL string) {
	if err := h.openExternal(rawURL); err != nil {
		h.logger.Warn("open external failed", "url", rawURL, "err", err)
	}
}

func (h *Host) openExternal(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrUnsupportedURL
	}
	name, args := openCommand(h.goos, u.String())
	return h.start(name, args...)
}

// openCommand returns the opener for goos.
func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
