package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqxion/keyword-cli/internal/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <seed> [seed...]",
	Short: "Run a keyword discovery pipeline over the given seeds",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		geo, _ := cmd.Flags().GetString("geo")
		language, _ := cmd.Flags().GetString("language")
		target, _ := cmd.Flags().GetInt("target")
		maxClusters, _ := cmd.Flags().GetInt("max-clusters")
		formulaVersion, _ := cmd.Flags().GetString("formula")

		// The collaborators are built from config, so per-run overrides have
		// to land there before assembly.
		if maxClusters > 0 {
			cfg.Cluster.MaxClusters = maxClusters
		}
		if geo != "" {
			cfg.Discovery.Geo = geo
		}
		if language != "" {
			cfg.Discovery.Language = language
			cfg.Suggest.Language = language
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		runCfg := model.RunConfig{
			Seeds:          args,
			Geo:            geo,
			Language:       language,
			TargetKeywords: target,
			MaxClusters:    maxClusters,
			FormulaVersion: formulaVersion,
		}
		if runCfg.Geo == "" {
			runCfg.Geo = cfg.Discovery.Geo
		}
		if runCfg.Language == "" {
			runCfg.Language = cfg.Discovery.Language
		}
		if runCfg.TargetKeywords == 0 {
			runCfg.TargetKeywords = cfg.Discovery.TargetKeywords
		}
		if runCfg.MaxClusters == 0 {
			runCfg.MaxClusters = cfg.Cluster.MaxClusters
		}
		if runCfg.FormulaVersion == "" {
			runCfg.FormulaVersion = cfg.Discovery.FormulaVersion
		}

		run, err := env.Pipeline.Run(ctx, runCfg)
		if err != nil {
			return err
		}

		printRunSummary(run)
		return nil
	},
}

// printRunSummary writes a human-readable result of a finished run.
func printRunSummary(run *model.Run) {
	fmt.Printf("Run %s finished: %s\n", run.ID, run.Status)
	if run.Result != nil {
		r := run.Result
		fmt.Printf("  candidates: %d  duplicates: %d  keywords: %d\n", r.Candidates, r.Duplicates, r.Keywords)
		fmt.Printf("  clusters: %d (%s)  noise: %d  estimated volumes: %d\n", r.Clusters, r.ClusteredBy, r.Noise, r.Estimated)
	}
	if run.Degraded {
		fmt.Fprintln(os.Stderr, "Degraded:")
		for _, reason := range run.Reasons {
			fmt.Fprintf(os.Stderr, "  - %s\n", reason)
		}
	}
}

func init() {
	discoverCmd.Flags().String("geo", "", "target market geo code (default from config)")
	discoverCmd.Flags().String("language", "", "keyword language (default from config)")
	discoverCmd.Flags().Int("target", 0, "max keywords to keep after scoring (default from config)")
	discoverCmd.Flags().Int("max-clusters", 0, "max clusters for centroid fallback (default from config)")
	discoverCmd.Flags().String("formula", "", "scoring formula version (default from config)")
	rootCmd.AddCommand(discoverCmd)
}
