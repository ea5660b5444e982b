package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix is the prefix of the environment variables that provide flag
// defaults. The flag "read-latency" is read from DMCACHE_READ_LATENCY.
const envPrefix = "DMCACHE_"

func newRootCmd() *cobra.Command {
	var (
		envFile  string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:   "dmcache",
		Short: "dmcache simulates a write-back direct-mapped cache.",
		Long: `dmcache simulates a write-back, direct-mapped cache that bridges ` +
			`a narrow word-oriented bus to a wide, pipelined block memory. ` +
			`Flags can also be set with DMCACHE_<FLAG> environment variables, ` +
			`optionally loaded from a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			if err := applyEnv(cmd.Flags()); err != nil {
				return err
			}

			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}

			logrus.SetLevel(level)

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"File to load environment variables from, if it exists.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Logging level (trace, debug, info, warn, error). Trace logs every "+
			"engine event.")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newLayoutCmd())

	return rootCmd
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	// A path that cannot be reached, such as one below a regular file, is
	// treated as a missing file. Unreadable files are still reported.
	_, err := os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrPermission) {
		return nil
	}

	return godotenv.Load(path)
}

// applyEnv sets every flag that was not given on the command line from its
// environment variable, if present.
func applyEnv(flags *pflag.FlagSet) error {
	var firstErr error

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}

		value, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}

		if err := f.Value.Set(value); err != nil {
			firstErr = fmt.Errorf("%s: %w", envName(f.Name), err)
			return
		}

		f.Changed = true
	})

	return firstErr
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
