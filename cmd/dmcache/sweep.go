package main

import (
	"context"
	"errors"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/dmcache/sim/id"
)

func newSweepCmd() *cobra.Command {
	config := defaultSimConfig()

	var (
		seeds    int
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run independent simulations over a range of seeds.",
		Long: `sweep runs one simulation per seed, starting from --seed, ` +
			`several at a time, and prints one summary line per seed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := sweep(cmd.Context(), config, seeds, parallel)
			if err != nil {
				return err
			}

			printSweep(cmd.OutOrStdout(), results)

			return checkAll(results)
		},
	}

	config.addFlags(cmd.Flags())
	cmd.Flags().IntVar(&seeds, "seeds", 8, "Number of seeds to run.")
	cmd.Flags().IntVar(&parallel, "parallel", runtime.NumCPU(),
		"Number of simulations to run at the same time.")

	return cmd
}

// sweep runs simulations for seeds config.Seed to config.Seed+n-1. Results are
// in seed order. The simulations share the task ID generator, which is
// switched to the parallel one.
func sweep(
	ctx context.Context,
	config simConfig,
	n, parallel int,
) ([]runResult, error) {
	if n < 1 {
		return nil, errors.New("at least one seed is required")
	}

	id.UseParallelIDGenerator()

	results := make([]runResult, n)

	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}

	for i := 0; i < n; i++ {
		c := config
		c.Seed = config.Seed + int64(i)

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			s, err := buildSimulation(c)
			if err != nil {
				return err
			}

			r, err := s.run()
			if err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"seed":   c.Seed,
				"cycles": r.Cycles,
			}).Debug("seed finished")

			results[i] = r

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func checkAll(results []runResult) error {
	var errs []error
	for _, r := range results {
		if err := r.check(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
