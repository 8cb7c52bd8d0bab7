package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/civiclens/appeals-cli/internal/model"
)

// Encoding selects the byte encoding of exported CSV files.
type Encoding string

const (
	// EncodingUTF8 writes plain UTF-8 without a byte order mark.
	EncodingUTF8 Encoding = "utf-8"
	// EncodingGB18030 writes GB18030 for Chinese-locale Excel.
	EncodingGB18030 Encoding = "gb18030"
)

// ParseEncoding maps a flag value to an Encoding. An empty value means UTF-8.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingUTF8:
		return EncodingUTF8, nil
	case EncodingGB18030:
		return EncodingGB18030, nil
	default:
		return "", eris.Errorf("dataset: unsupported csv encoding %q (use utf-8 or gb18030)", s)
	}
}

// WriteReportXLSX writes the aggregated report as a two-sheet workbook: a
// Summary sheet of headline figures and a Topics sheet listing every cluster,
// noise last.
func WriteReportXLSX(path string, rep *model.Report) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "dataset: add summary sheet")
	}
	addInt := func(name string, value int) {
		row := summary.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetInt(value)
	}
	addInt("Total records", rep.TotalRecords)
	addInt("Topics", rep.TopicCount)
	addInt("Clustered records", rep.ValidCount)
	addInt("Noise records", rep.NoiseCount)
	cov := summary.AddRow()
	cov.AddCell().SetString("Coverage")
	cov.AddCell().SetFloat(rep.Coverage)

	topics, err := f.AddSheet("Topics")
	if err != nil {
		return eris.Wrap(err, "dataset: add topics sheet")
	}
	header := topics.AddRow()
	for _, name := range []string{"Cluster", "Keyword", "Count", "Share"} {
		header.AddCell().SetString(name)
	}
	for _, e := range rep.Entries {
		row := topics.AddRow()
		row.AddCell().SetInt(e.ClusterID)
		row.AddCell().SetString(e.Keyword)
		row.AddCell().SetInt(e.Count)
		row.AddCell().SetFloat(e.Percentage)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "dataset: save %s", path)
	}
	return nil
}

// WriteReportCSV writes the per-cluster report rows as CSV in the requested
// encoding.
func WriteReportCSV(path string, rep *model.Report, enc Encoding) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	var out io.Writer = f
	var tw *transform.Writer
	switch enc {
	case EncodingUTF8, "":
	case EncodingGB18030:
		tw = transform.NewWriter(f, simplifiedchinese.GB18030.NewEncoder())
		out = tw
	default:
		return eris.Errorf("dataset: unsupported csv encoding %q", enc)
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"Cluster", "Keyword", "Count", "Share"}); err != nil {
		return eris.Wrap(err, "dataset: write csv header")
	}
	for _, e := range rep.Entries {
		rec := []string{
			strconv.Itoa(e.ClusterID),
			e.Keyword,
			strconv.Itoa(e.Count),
			strconv.FormatFloat(e.Percentage, 'f', 4, 64),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "dataset: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "dataset: flush csv")
	}
	if tw != nil {
		if err := tw.Close(); err != nil {
			return eris.Wrap(err, "dataset: encode csv")
		}
	}
	return nil
}
