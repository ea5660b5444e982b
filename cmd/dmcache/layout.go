package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/dmcache/mem/cache/directmapped"
)

func newLayoutCmd() *cobra.Command {
	config := defaultSimConfig()

	cmd := &cobra.Command{
		Use:   "layout [address...]",
		Short: "Show how addresses split into tag, line and offset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := directmapped.NewLayout(config.geometry())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printLayout(w, l)

			for _, arg := range args {
				addr, err := strconv.ParseUint(arg, 0, 64)
				if err != nil {
					return fmt.Errorf("address %q: %w", arg, err)
				}

				printSplit(w, l, addr)
			}

			return nil
		},
	}

	config.addGeometryFlags(cmd.Flags())

	return cmd
}
