package cli

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/driver/local"
	"github.com/gobeaver/streamkit/internal/logger"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type ChecksumCommandOpts struct {
	Algorithms []string
	Jobs       int
	Verify     string
}

type fileDigests struct {
	path    string
	digests map[streamkit.ChecksumAlgorithm]string
}

func ChecksumCommand() *cobra.Command {
	opts := &ChecksumCommandOpts{}

	cmd := &cobra.Command{
		Use:     "checksum <file>...",
		Short:   "Compute checksums of one or more files concurrently",
		Aliases: []string{"sum"},
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig(cmd)

			algos := make([]streamkit.ChecksumAlgorithm, 0, len(opts.Algorithms))
			for _, a := range opts.Algorithms {
				algo := streamkit.ChecksumAlgorithm(a)
				if _, err := streamkit.NewHasher(algo); err != nil {
					return err
				}
				if !slices.Contains(algos, algo) {
					algos = append(algos, algo)
				}
			}
			if opts.Verify != "" && (len(args) != 1 || len(algos) != 1) {
				return fmt.Errorf("--verify needs exactly one file and one algorithm")
			}

			results, err := checksumFiles(cmd.Context(), cfg, args, algos, opts.Jobs)
			if err != nil {
				return err
			}

			if opts.Verify != "" {
				got := results[0].digests[algos[0]]
				if got != opts.Verify {
					return fmt.Errorf("checksum mismatch for %s: got %s, want %s", args[0], got, opts.Verify)
				}
				pterm.Success.Printfln("%s: %s OK", args[0], algos[0])
				return nil
			}

			data := pterm.TableData{{"File", "Algorithm", "Digest"}}
			for _, r := range results {
				for _, algo := range algos {
					data = append(data, []string{r.path, string(algo), r.digests[algo]})
				}
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(cmd.OutOrStdout()).Render()
		},
	}

	cmd.Flags().StringSliceVar(&opts.Algorithms, "algo", []string{string(streamkit.ChecksumSHA256)}, "Checksum algorithms: md5|sha1|sha256|sha512|crc32|xxhash")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", runtime.NumCPU(), "Number of files hashed in parallel")
	cmd.Flags().StringVar(&opts.Verify, "verify", "", "Expected digest; fail if it does not match")
	return cmd
}

// checksumFiles hashes every path with all algorithms in a single pass per
// file. Results keep the order of paths. The first failure cancels the rest.
func checksumFiles(ctx context.Context, cfg *streamkit.Config, paths []string, algos []streamkit.ChecksumAlgorithm, jobs int) ([]fileDigests, error) {
	results := make([]fileDigests, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			f, err := local.Open(path, local.ReadOnly, local.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer f.Close()

			start := time.Now()
			digests, err := streamkit.Checksums(f, algos, cfg.CopyOptions()...)
			if err != nil {
				return fmt.Errorf("checksum %s: %w", path, err)
			}

			logger.Debug("checksum computed", logger.Fields{
				logger.FieldPath:      path,
				logger.FieldAlgorithm: algos,
				logger.FieldElapsed:   time.Since(start),
			})
			results[i] = fileDigests{path: path, digests: digests}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
