package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aqxion/keyword-cli/internal/model"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords <run-id>",
	Short: "List scored keywords for a run",
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

		records, err := st.ListKeywords(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "keywords list")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No keywords found for run.")
			return nil
		}

		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(records) > limit {
			records = records[:limit]
		}

		formatKeywords(os.Stdout, records)
		return nil
	},
}

// formatKeywords writes a tabular keyword list to w.
func formatKeywords(out io.Writer, records []model.KeywordRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEYWORD\tSCORE\tVOLUME\tINTENT\tCLUSTER")
	for i := range records {
		r := &records[i]
		volume := fmt.Sprintf("%d", r.Volume)
		if r.VolumeEstimated {
			volume += "~"
		}
		cluster := "-"
		if r.ClusterID != nil {
			if *r.ClusterID == model.ClusterNoise {
				cluster = "noise"
			} else if r.ClusterLabel != "" {
				cluster = r.ClusterLabel
			} else {
				cluster = fmt.Sprintf("%d", *r.ClusterID)
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%s\n", r.Text, r.Score, volume, r.Intent, cluster)
	}
	_ = w.Flush()
}

func init() {
	keywordsCmd.Flags().Int("limit", 0, "max keywords to display (0 = all)")
	rootCmd.AddCommand(keywordsCmd)
}
