package streamkit

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Chunk size used by CopyStream when no WithBufferSize option is given
	CopyBufferSize int `env:"STREAMKIT_COPY_BUFFER_SIZE,default:65536"`

	// Buffer sizes for NewBufferedReader / NewBufferedWriter
	ReadBufferSize  int `env:"STREAMKIT_READ_BUFFER_SIZE,default:4096"`
	WriteBufferSize int `env:"STREAMKIT_WRITE_BUFFER_SIZE,default:4096"`

	// Memory mapping of file streams
	MmapEnabled  bool   `env:"STREAMKIT_MMAP_ENABLED,default:false"`
	MmapPatterns string `env:"STREAMKIT_MMAP_PATTERNS"` // comma-separated globs
	ResizePolicy string `env:"STREAMKIT_RESIZE_POLICY,default:reject"`

	// Permission bits for files created by local streams (octal)
	FilePerm string `env:"STREAMKIT_FILE_PERM,default:0644"`

	LogLevel string `env:"STREAMKIT_LOG_LEVEL,default:info"`
}

// Builder loads a Config with a custom environment prefix
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Load reads the config from the environment using the builder's prefix
func (b *Builder) Load() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values that the env tags cannot express
func (c *Config) Validate() error {
	if c.CopyBufferSize < 0 || c.ReadBufferSize < 0 || c.WriteBufferSize < 0 {
		return fmt.Errorf("buffer sizes must not be negative")
	}
	switch strings.ToLower(c.ResizePolicy) {
	case "", "reject", "remap":
	default:
		return fmt.Errorf("unknown resize policy %q", c.ResizePolicy)
	}
	if _, err := c.Perm(); err != nil {
		return err
	}
	return nil
}

// Perm parses FilePerm as an octal permission
func (c *Config) Perm() (os.FileMode, error) {
	if c.FilePerm == "" {
		return 0o644, nil
	}
	v, err := strconv.ParseUint(c.FilePerm, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file permission %q: %w", c.FilePerm, err)
	}
	return os.FileMode(v) & os.ModePerm, nil
}

// Patterns splits MmapPatterns into its non-empty entries
func (c *Config) Patterns() []string {
	var out []string
	for _, p := range strings.Split(c.MmapPatterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CopyOptions returns the CopyStream options implied by the config
func (c *Config) CopyOptions() []CopyOption {
	if c.CopyBufferSize <= 0 {
		return nil
	}
	return []CopyOption{WithBufferSize(c.CopyBufferSize)}
}
