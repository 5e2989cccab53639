package cli

import (
	"context"
	"fmt"

	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/internal/logger"
	"github.com/spf13/cobra"
)

type ctxKey string

const configCtxKey ctxKey = "config"

// NewRootCommand builds the streamkit command tree.
func NewRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "streamkit",
		Short:         "streamkit moves bytes between files with optional memory mapping",
		Long:          `streamkit is a small CLI over the streamkit library: copy files in chunks, print byte ranges, compute checksums and follow growing files. File streams honour BEAVER_STREAMKIT_* environment settings such as mmap patterns and the resize policy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := streamkit.GetConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
				cfg.LogLevel = logLevel
			}
			if err := logger.ConfigureLogger(cfg.LogLevel); err != nil {
				logger.Warn("invalid log level, defaulting to info", logger.Fields{
					logger.FieldError: err.Error(),
				})
			}

			logger.Debug("config loaded", logger.Fields{
				logger.FieldPolicy: cfg.ResizePolicy,
				logger.FieldSize:   cfg.CopyBufferSize,
			})

			cmd.SetContext(context.WithValue(cmd.Context(), configCtxKey, cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace|debug|info|warn|error")

	rootCmd.AddCommand(CopyCommand())
	rootCmd.AddCommand(CatCommand())
	rootCmd.AddCommand(ChecksumCommand())
	rootCmd.AddCommand(FollowCommand())

	return rootCmd
}

// GetConfig returns the config loaded by the root command.
func GetConfig(cmd *cobra.Command) *streamkit.Config {
	if v := cmd.Context().Value(configCtxKey); v != nil {
		if cfg, ok := v.(*streamkit.Config); ok {
			return cfg
		}
	}
	return &streamkit.Config{}
}
