// Package export writes run output as CSV and XLSX files for downstream
// content planning tools.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/aqxion/keyword-cli/internal/model"
)

// keywordColumns defines the ordered keyword CSV output columns.
var keywordColumns = []string{
	"Keyword",
	"Score",
	"Volume",
	"Volume Estimated",
	"Competition",
	"Trend",
	"Intent",
	"Intent Probability",
	"Cluster",
	"Sources",
	"Formula",
}

// WriteKeywordsCSV writes scored keyword records to a CSV file, preserving
// the order they are given in.
func WriteKeywordsCSV(records []model.KeywordRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(keywordColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for i := range records {
		if err := w.Write(buildKeywordRow(&records[i])); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	return nil
}

// buildKeywordRow maps a KeywordRecord to a CSV row.
func buildKeywordRow(r *model.KeywordRecord) []string {
	return []string{
		r.Text,
		strconv.FormatFloat(r.Score, 'f', 2, 64),
		strconv.Itoa(r.Volume),
		strconv.FormatBool(r.VolumeEstimated),
		strconv.FormatFloat(r.Competition, 'f', 2, 64),
		strconv.FormatFloat(r.TrendScore, 'f', 2, 64),
		string(r.Intent),
		strconv.FormatFloat(r.IntentProb, 'f', 2, 64),
		clusterCell(r),
		strings.Join(r.Sources, ";"),
		r.FormulaVersion,
	}
}

// clusterCell renders the cluster assignment: the label when one exists,
// "noise" for outliers, empty when unclustered.
func clusterCell(r *model.KeywordRecord) string {
	if r.ClusterID == nil {
		return ""
	}
	if *r.ClusterID == model.ClusterNoise {
		return "noise"
	}
	if r.ClusterLabel != "" {
		return r.ClusterLabel
	}
	return strconv.Itoa(*r.ClusterID)
}

// WriteClustersXLSX writes a workbook with a cluster summary sheet and one
// detail sheet listing every keyword with its cluster assignment.
func WriteClustersXLSX(clusters []model.Cluster, records []model.KeywordRecord, outputPath string) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Clusters")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	writeRow(summary, "Cluster", "Label", "Representative", "Size", "Mean Score", "Dominant Intent")
	for _, c := range clusters {
		writeRow(summary,
			strconv.Itoa(c.ID),
			c.Label,
			c.Representative,
			strconv.Itoa(c.Size),
			strconv.FormatFloat(c.MeanScore, 'f', 2, 64),
			string(c.DominantIntent),
		)
	}

	detail, err := f.AddSheet("Keywords")
	if err != nil {
		return eris.Wrap(err, "export: add detail sheet")
	}
	writeRow(detail, "Keyword", "Score", "Volume", "Intent", "Cluster")
	for i := range records {
		r := &records[i]
		writeRow(detail,
			r.Text,
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			strconv.Itoa(r.Volume),
			string(r.Intent),
			clusterCell(r),
		)
	}

	if err := f.Save(outputPath); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

// writeRow appends a row of string cells to a sheet.
func writeRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

// Run writes both export artifacts for a run into dir and returns the paths
// written. The directory is created if missing.
func Run(run *model.Run, records []model.KeywordRecord, clusters []model.Cluster, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "export: create directory")
	}

	csvPath := filepath.Join(dir, fmt.Sprintf("run-%s-keywords.csv", run.ID))
	if err := WriteKeywordsCSV(records, csvPath); err != nil {
		return nil, err
	}

	xlsxPath := filepath.Join(dir, fmt.Sprintf("run-%s-clusters.xlsx", run.ID))
	if err := WriteClustersXLSX(clusters, records, xlsxPath); err != nil {
		return nil, err
	}

	return []string{csvPath, xlsxPath}, nil
}
