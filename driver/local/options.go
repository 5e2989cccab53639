package local

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobeaver/streamkit"
	"github.com/gobwas/glob"
)

// ResizePolicy decides what Truncate does while a mapping is active.
type ResizePolicy int

const (
	// ResizeReject fails a Truncate that would cut into the mapped range
	// with ErrMappingActive. Growing the file is always allowed.
	ResizeReject ResizePolicy = iota

	// ResizeRemap syncs and releases the mapping, resizes the file and maps
	// the range again, clipped to the new size.
	ResizeRemap
)

func (p ResizePolicy) String() string {
	switch p {
	case ResizeReject:
		return "reject"
	case ResizeRemap:
		return "remap"
	default:
		return fmt.Sprintf("ResizePolicy(%d)", int(p))
	}
}

// ParseResizePolicy parses "reject" or "remap". An empty string selects
// ResizeReject.
func ParseResizePolicy(s string) (ResizePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return ResizeReject, nil
	case "remap":
		return ResizeRemap, nil
	default:
		return ResizeReject, fmt.Errorf("unknown resize policy %q", s)
	}
}

// Options configures Open.
type Options struct {
	// Perm is used when Open creates the file (default 0644)
	Perm os.FileMode

	// Mapping maps the whole file right after it is opened
	Mapping bool

	// MapPatterns enables Mapping for paths matching any of these globs
	MapPatterns []glob.Glob

	// ResizePolicy applies to Truncate while a mapping is active
	ResizePolicy ResizePolicy

	autoMap bool
	err     error
}

// Option is a functional option for Open
type Option func(*Options)

// WithPerm sets the permission bits for newly created files
func WithPerm(perm os.FileMode) Option {
	return func(o *Options) {
		o.Perm = perm
	}
}

// WithMapping maps the whole file right after it is opened
func WithMapping() Option {
	return func(o *Options) {
		o.Mapping = true
	}
}

// WithResizePolicy sets the resize policy for active mappings
func WithResizePolicy(p ResizePolicy) Option {
	return func(o *Options) {
		o.ResizePolicy = p
	}
}

// WithMapPatterns maps files whose path or base name matches one of the glob
// patterns. Patterns use '/' as separator, so "*.db" matches base names and
// "data/**" matches whole subtrees. An invalid pattern makes Open fail.
func WithMapPatterns(patterns ...string) Option {
	return func(o *Options) {
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				o.err = fmt.Errorf("invalid map pattern %q: %w", p, err)
				return
			}
			o.MapPatterns = append(o.MapPatterns, g)
		}
	}
}

// WithConfig applies the file stream settings of cfg. Mapping enabled by the
// config is best effort: files that cannot be mapped are opened unmapped.
func WithConfig(cfg *streamkit.Config) Option {
	return func(o *Options) {
		if cfg == nil {
			return
		}
		perm, err := cfg.Perm()
		if err != nil {
			o.err = err
			return
		}
		o.Perm = perm
		o.autoMap = o.autoMap || cfg.MmapEnabled

		policy, err := ParseResizePolicy(cfg.ResizePolicy)
		if err != nil {
			o.err = err
			return
		}
		o.ResizePolicy = policy

		WithMapPatterns(cfg.Patterns()...)(o)
	}
}

func processOptions(options ...Option) *Options {
	opts := &Options{Perm: 0o644}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}

// shouldMap reports whether path should be mapped on open.
func (o *Options) shouldMap(path string) bool {
	if o.Mapping || o.autoMap {
		return true
	}
	if len(o.MapPatterns) == 0 {
		return false
	}
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, g := range o.MapPatterns {
		if g.Match(slashed) || g.Match(base) {
			return true
		}
	}
	return false
}
