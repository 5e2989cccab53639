package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/driver/local"
	"github.com/gobeaver/streamkit/internal/logger"
	"github.com/spf13/cobra"
)

type FollowCommandOpts struct {
	FromStart bool
	Poll      time.Duration
}

func FollowCommand() *cobra.Command {
	opts := &FollowCommandOpts{}

	cmd := &cobra.Command{
		Use:     "follow <file>",
		Short:   "Print data appended to a file as it grows",
		Aliases: []string{"tail"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig(cmd)

			f, err := local.Open(args[0], local.ReadOnly, local.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer f.Close()

			if !opts.FromStart {
				if _, err := f.Seek(0, io.SeekEnd); err != nil {
					return err
				}
			}

			err = follow(cmd.Context(), f, cmd.OutOrStdout(), opts.Poll, cfg.CopyOptions()...)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "Print the existing content first")
	cmd.Flags().DurationVar(&opts.Poll, "poll", 0, "Poll the file size at this interval instead of using file system events")
	return cmd
}

// statSizer reports the size of the file on disk rather than the size the
// stream last observed.
type statSizer struct {
	f *local.Stream
}

func (s statSizer) Size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// follow copies everything past the current position of f to w, then waits
// for the file to change and repeats until ctx is done. The next token is
// armed before copying so that writes racing the copy are not missed.
func follow(ctx context.Context, f *local.Stream, w io.Writer, poll time.Duration, opts ...streamkit.CopyOption) error {
	for {
		token, stop, err := nextChange(ctx, f, poll)
		if err != nil {
			return err
		}

		size, err := statSizer{f}.Size()
		if err != nil {
			stop()
			return err
		}
		if pos, _ := streamkit.Position(f); size < pos {
			logger.Info("file truncated, starting over", logger.Fields{
				logger.FieldPath: f.Name(),
				logger.FieldSize: size,
			})
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				stop()
				return err
			}
		}

		if _, err := streamkit.CopyStream(w, f, opts...); err != nil {
			stop()
			return err
		}

		err = streamkit.WaitForChange(ctx, token)
		stop()
		if err != nil {
			return err
		}
	}
}

// nextChange arms a token for the next modification of f. With a positive
// poll interval the size is polled; otherwise file system events are used.
func nextChange(ctx context.Context, f *local.Stream, poll time.Duration) (streamkit.ChangeToken, func(), error) {
	if poll > 0 {
		token := streamkit.NewPollingChangeToken(ctx, streamkit.SizeChanged(statSizer{f}, poll))
		return token, token.Stop, nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	token, err := f.Watch(watchCtx)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return token, cancel, nil
}
