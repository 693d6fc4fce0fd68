// Package render orchestrates the compile pipeline: it hashes requests,
// consults the content-addressed cache, dispatches misses to the worker
// channel, and parses the diagnostic stream of the result.
//
// A Service is an explicit instance owned by the composition root. There
// is deliberately no package-level singleton; tests and embedders build as
// many independent instances as they need.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/fred913/scadstudio/internal/diag"
	"github.com/fred913/scadstudio/internal/rendercache"
	"github.com/fred913/scadstudio/internal/worker"
)

// View modes. The view decides which artifact the compute unit produces:
// 3D yields a mesh, 2D yields a vector drawing.
const (
	View3D = "3d"
	View2D = "2d"
)

// RenderOptions selects how a render request is compiled.
type RenderOptions struct {
	// View is "2d" or "3d". Empty defaults to 3D.
	View string
	// Backend names the geometry backend passed to the engine. Empty
	// uses the engine default.
	Backend string
	// Defines are "name=value" variable overrides, typically produced
	// from a parameter preset. Order-insensitive for caching.
	Defines []string
}

// RenderResult is the outcome of a render: the artifact bytes, what kind
// of artifact they are, and the structured diagnostics of the compile.
type RenderResult struct {
	Output      []byte
	Kind        rendercache.OutputKind
	Diagnostics []diag.Diagnostic
	FromCache   bool
}

// ExportOptions selects how an export request is compiled.
type ExportOptions struct {
	Backend string
	Defines []string
}

// exportFormats maps supported export formats to their output file
// extension and any extra encoding arguments. STL selects the compact
// binary encoding; the remaining formats have a single encoding.
var exportFormats = map[string][]string{
	"stl": {"--export-format", "binstl"},
	"obj": nil,
	"amf": nil,
	"3mf": nil,
	"png": nil,
	"svg": nil,
	"dxf": nil,
}

// ExportFormats lists the supported export formats in sorted order.
func ExportFormats() []string {
	out := make([]string, 0, len(exportFormats))
	for f := range exportFormats {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Service is the public face of the render pipeline.
//
// All methods are safe for concurrent use. Render is idempotent with
// respect to caching: repeated identical requests trigger at most one
// physical compute invocation per cache lifetime.
type Service struct {
	channel *worker.Channel
	cache   *rendercache.Cache
	log     *slog.Logger

	mu       sync.Mutex
	disposed bool
}

// Option configures a Service.
type Option func(*serviceConfig)

type serviceConfig struct {
	cacheCapacity int
	log           *slog.Logger
}

// WithCacheCapacity bounds the render cache at n entries.
func WithCacheCapacity(n int) Option {
	return func(c *serviceConfig) { c.cacheCapacity = n }
}

// WithLogger routes the service's debug output to log.
func WithLogger(log *slog.Logger) Option {
	return func(c *serviceConfig) { c.log = log }
}

// New creates a Service that compiles through units built by factory.
func New(factory worker.UnitFactory, opts ...Option) *Service {
	cfg := serviceConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		channel: worker.NewChannel(factory, cfg.log),
		cache:   rendercache.New(cfg.cacheCapacity),
		log:     cfg.log,
	}
}

// Init warms the worker channel up front so the first render does not pay
// unit-creation cost. Optional; Render initializes lazily as well.
func (s *Service) Init(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.channel.Init(ctx); err != nil {
		return s.wrapChannelErr(err)
	}
	return nil
}

// Render compiles source for preview. Identical (source, backend, view,
// defines) requests are served from cache without re-invoking the compute
// unit; failed compiles are cached under the same key, since identical
// broken source fails identically.
func (s *Service) Render(ctx context.Context, source string, opts RenderOptions) (*RenderResult, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	view := opts.View
	if view == "" {
		view = View3D
	}
	if view != View2D && view != View3D {
		return nil, &ServiceError{Code: ErrCodeBadRequest, Message: fmt.Sprintf("unknown view mode %q", opts.View)}
	}

	defines := canonicalDefines(opts.Defines)
	key := rendercache.KeyWithDefines(source, opts.Backend, view, defines)
	if e := s.cache.Get(key); e != nil {
		s.log.Debug("render cache hit", "key", key[:12])
		return &RenderResult{
			Output:      e.Output,
			Kind:        e.Kind,
			Diagnostics: e.Diagnostics,
			FromCache:   true,
		}, nil
	}

	kind := rendercache.KindMesh
	out := "model.stl"
	if view == View2D {
		kind = rendercache.KindSVG
		out = "model.svg"
	}
	args := buildArgs(out, opts.Backend, defines, nil)

	res, err := s.channel.Send(ctx, worker.Request{Source: source, Args: args})
	if err != nil {
		return nil, s.wrapChannelErr(err)
	}

	diags := diag.Parse(res.Stderr)
	s.cache.Set(key, rendercache.Entry{Output: res.Output, Kind: kind, Diagnostics: diags})

	return &RenderResult{Output: res.Output, Kind: kind, Diagnostics: diags}, nil
}

// CheckSyntax compiles source purely to surface diagnostics. The produced
// artifact is not meaningful to the caller; it does mean the invocation is
// render-shaped, so the result shares the render cache and a following
// preview of unchanged source is free.
func (s *Service) CheckSyntax(ctx context.Context, source string) ([]diag.Diagnostic, error) {
	res, err := s.Render(ctx, source, RenderOptions{})
	if err != nil {
		return nil, err
	}
	return res.Diagnostics, nil
}

// Export compiles source into the named format and returns the raw
// artifact bytes. Zero output bytes with error diagnostics fail as a
// compile error enumerating them; zero bytes without error diagnostics
// fail as a generic no-output error.
func (s *Service) Export(ctx context.Context, source, format string, opts ExportOptions) ([]byte, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	extra, ok := exportFormats[format]
	if !ok {
		return nil, &ServiceError{
			Code:    ErrCodeBadRequest,
			Message: fmt.Sprintf("unknown export format %q (supported: %s)", format, strings.Join(ExportFormats(), ", ")),
		}
	}

	args := buildArgs("model."+format, opts.Backend, canonicalDefines(opts.Defines), extra)
	res, err := s.channel.Send(ctx, worker.Request{Source: source, Args: args})
	if err != nil {
		return nil, s.wrapChannelErr(err)
	}

	if len(res.Output) == 0 {
		diags := diag.Parse(res.Stderr)
		if errs := diag.Errors(diags); len(errs) > 0 {
			return nil, &ServiceError{
				Code:        ErrCodeCompileFailed,
				Message:     "compilation errors",
				Diagnostics: errs,
			}
		}
		return nil, &ServiceError{Code: ErrCodeNoOutput, Message: "no output produced"}
	}
	return res.Output, nil
}

// Cancel terminates the in-flight compute unit and rejects all pending
// work. A subsequent call re-initializes transparently.
func (s *Service) Cancel() {
	s.channel.Cancel()
}

// ClearCache drops every cached render result.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// Dispose permanently shuts the service down. All further operations fail
// with a disposed error.
func (s *Service) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
	s.channel.Close()
}

// CacheLen returns the number of cached entries. Intended for tests and
// introspection.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}

func (s *Service) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return &ServiceError{Code: ErrCodeDisposed, Message: "service disposed"}
	}
	return nil
}

func (s *Service) wrapChannelErr(err error) error {
	switch {
	case worker.IsCancelled(err):
		return &ServiceError{Code: ErrCodeCancelled, Message: "render cancelled", Err: err}
	case worker.IsClosed(err):
		return &ServiceError{Code: ErrCodeDisposed, Message: "service disposed", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Caller-imposed deadline, not a channel condition.
		return err
	default:
		return &ServiceError{Code: ErrCodeChannel, Message: "compute channel failure", Err: err}
	}
}

// buildArgs assembles the engine argument vector: output path first, then
// encoding arguments, backend selector, and variable overrides. The input
// file name is appended by the unit itself.
func buildArgs(outputFile, backend string, defines, extra []string) []string {
	args := []string{"-o", outputFile}
	args = append(args, extra...)
	if backend != "" {
		args = append(args, "--backend="+backend)
	}
	for _, d := range defines {
		args = append(args, "-D", d)
	}
	return args
}

// canonicalDefines sorts and copies variable overrides so equivalent
// presets hash to the same cache key regardless of declaration order.
func canonicalDefines(defines []string) []string {
	if len(defines) == 0 {
		return nil
	}
	out := make([]string, len(defines))
	copy(out, defines)
	sort.Strings(out)
	return out
}
