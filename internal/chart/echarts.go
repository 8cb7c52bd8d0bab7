// Package chart renders the topic report as a self-contained HTML page of
// ECharts visualizations.
package chart

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"

	"github.com/civiclens/appeals-cli/internal/model"
)

// TopicBar builds a bar chart of the ranked topics. The x axis carries the
// truncated labels; each bar's full keyword rides along as the series item
// name so hovering reveals it.
func TopicBar(rep *model.Report) *charts.Bar {
	x := make([]string, 0, len(rep.Top10))
	data := make([]opts.BarData, 0, len(rep.Top10))
	for _, e := range rep.Top10 {
		x = append(x, e.Label)
		data = append(data, opts.BarData{Name: e.Keyword, Value: e.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Appeal Topics", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Top Appeal Topics",
			Subtitle: fmt.Sprintf("%d topics across %d records", rep.TopicCount, rep.TotalRecords),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
	)
	bar.SetXAxis(x).AddSeries("records", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

// CoveragePie builds a pie of clustered versus noise records.
func CoveragePie(rep *model.Report) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Clustering Coverage",
			Subtitle: fmt.Sprintf("%.1f%% of records clustered", rep.Coverage*100),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	pie.AddSeries("records", []opts.PieData{
		{Name: "clustered", Value: rep.ValidCount},
		{Name: "noise", Value: rep.NoiseCount},
	}).SetSeriesOptions(
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}),
	)
	return pie
}

// Render writes the full chart page for a report.
func Render(w io.Writer, rep *model.Report) error {
	page := components.NewPage()
	page.AddCharts(TopicBar(rep), CoveragePie(rep))
	if err := page.Render(w); err != nil {
		return eris.Wrap(err, "chart: render page")
	}
	return nil
}

// WriteHTML renders the chart page to a file.
func WriteHTML(path string, rep *model.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "chart: create %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Render(f, rep)
}
