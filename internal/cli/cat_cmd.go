package cli

import (
	"fmt"
	"io"

	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/driver/local"
	"github.com/spf13/cobra"
)

type CatCommandOpts struct {
	Offset int64
	Length int64
	Mmap   bool
}

func CatCommand() *cobra.Command {
	opts := &CatCommandOpts{}

	cmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "Write a file, or a byte range of it, to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig(cmd)

			fileOpts := []local.Option{local.WithConfig(cfg)}
			if opts.Mmap {
				fileOpts = append(fileOpts, local.WithMapping())
			}
			f, err := local.Open(args[0], local.ReadOnly, fileOpts...)
			if err != nil {
				return err
			}
			defer f.Close()

			src, err := catRange(f, opts.Offset, opts.Length)
			if err != nil {
				return err
			}
			_, err = streamkit.CopyStream(cmd.OutOrStdout(), src, cfg.CopyOptions()...)
			return err
		},
	}

	cmd.Flags().Int64Var(&opts.Offset, "offset", 0, "Byte offset to start at")
	cmd.Flags().Int64Var(&opts.Length, "length", 0, "Number of bytes to print (0 = to end of file)")
	cmd.Flags().BoolVar(&opts.Mmap, "mmap", false, "Map the file into memory")
	return cmd
}

// catRange narrows s to [offset, offset+length). A zero length runs to the
// end of the stream.
func catRange(s streamkit.ReadSeeker, offset, length int64) (io.Reader, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("offset and length must not be negative")
	}
	if offset == 0 && length == 0 {
		return s, nil
	}
	if length == 0 {
		sz, err := streamkit.AsSizer(s)
		if err != nil {
			return nil, err
		}
		size, err := sz.Size()
		if err != nil {
			return nil, err
		}
		length = max(size-offset, 0)
	}
	v, err := streamkit.Window(s, offset, length)
	if err != nil {
		return nil, err
	}
	return v, nil
}
