package cli

import (
	"fmt"
	"time"

	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/driver/local"
	"github.com/gobeaver/streamkit/internal/logger"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type CopyCommandOpts struct {
	BufferSize int
	Append     bool
	Mmap       bool
	Progress   bool
	Sync       bool
}

func CopyCommand() *cobra.Command {
	opts := &CopyCommandOpts{}

	cmd := &cobra.Command{
		Use:     "copy <src> <dst>",
		Short:   "Copy a file through streams in fixed-size chunks",
		Aliases: []string{"cp"},
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig(cmd)
			src, dst := args[0], args[1]

			srcOpts := []local.Option{local.WithConfig(cfg)}
			if opts.Mmap {
				srcOpts = append(srcOpts, local.WithMapping())
			}
			in, err := local.Open(src, local.ReadOnly, srcOpts...)
			if err != nil {
				return err
			}
			defer in.Close()

			mode := local.CreateOrTruncate
			if opts.Append {
				mode = local.Append
			}
			out, err := local.Open(dst, mode, local.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer out.Close()

			copyOpts := cfg.CopyOptions()
			if opts.BufferSize > 0 {
				copyOpts = append(copyOpts, streamkit.WithBufferSize(opts.BufferSize))
			}

			var bar *pterm.ProgressbarPrinter
			if opts.Progress {
				size, err := in.Size()
				if err != nil {
					return err
				}
				if size > 0 {
					bar, _ = pterm.DefaultProgressbar.WithTotal(int(size)).WithTitle(src).Start()
				}
			}
			if bar != nil {
				var last int64
				copyOpts = append(copyOpts, streamkit.WithProgress(func(done, _ int64) {
					bar.Add(int(done - last))
					last = done
				}))
			}

			start := time.Now()
			n, err := streamkit.CopyStream(out, in, copyOpts...)
			if bar != nil {
				_, _ = bar.Stop()
			}
			if err != nil {
				return fmt.Errorf("copy %s to %s: %w", src, dst, err)
			}

			if opts.Sync {
				if err := out.Flush(); err != nil {
					return err
				}
			}
			if err := out.Close(); err != nil {
				return err
			}

			logger.Debug("copy finished", logger.Fields{
				logger.FieldPath:    dst,
				logger.FieldBytes:   n,
				logger.FieldElapsed: time.Since(start),
			})
			pterm.Success.Printfln("copied %d bytes from %s to %s", n, src, dst)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.BufferSize, "buffer-size", 0, "Chunk size in bytes (default from config)")
	cmd.Flags().BoolVar(&opts.Append, "append", false, "Append to the destination instead of truncating it")
	cmd.Flags().BoolVar(&opts.Mmap, "mmap", false, "Map the source file into memory")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Show a progress bar")
	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "Flush the destination to stable storage before exiting")
	return cmd
}
