package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aqxion/keyword-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write keyword CSV and cluster workbook for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}
		records, err := st.ListKeywords(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "export: load keywords")
		}
		clusters, err := st.ListClusters(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "export: load clusters")
		}

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Export.Dir
		}

		paths, err := export.Run(run, records, clusters, dir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("dir", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
