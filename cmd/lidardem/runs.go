package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-lidardem/catalog"
)

func newRunsCmd() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List conversions recorded in a catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Catalog == "" {
				return errors.New("no catalog: set --catalog or LIDARDEM_CATALOG")
			}
			c, err := catalog.Open(cmd.Context(), cfg.Catalog)
			if err != nil {
				return err
			}
			defer c.Close()
			runs, err := c.Runs(cmd.Context())
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Fprintln(cmd.OutOrStdout(), run)
			}
			return nil
		},
	}

	runsCmd.Flags().String("catalog", "", "SQLite catalog")

	return runsCmd
}
