package metrics

import (
	"time"

	"github.com/mohitkumar/txflow/logger"
	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

// LogExporter writes every reported view row to the debug log.
type LogExporter struct{}

var _ view.Exporter = LogExporter{}

func (LogExporter) ExportView(vd *view.Data) {
	for _, row := range vd.Rows {
		logger.Debug("metric", zap.String("view", vd.View.Name), zap.Any("tags", row.Tags), zap.Any("data", row.Data))
	}
}

func StartLogExporter(period time.Duration) {
	view.SetReportingPeriod(period)
	view.RegisterExporter(LogExporter{})
}

// Row is a flattened view row for the http api.
type Row struct {
	View  string            `json:"view"`
	Tags  map[string]string `json:"tags"`
	Count int64             `json:"count,omitempty"`
	Mean  float64           `json:"mean,omitempty"`
}

// Snapshot returns the current rows of every view of this package.
func Snapshot() ([]Row, error) {
	var res []Row
	for _, v := range Views {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			row := Row{View: v.Name, Tags: make(map[string]string)}
			for _, t := range r.Tags {
				row.Tags[t.Key.Name()] = t.Value
			}
			switch d := r.Data.(type) {
			case *view.CountData:
				row.Count = d.Value
			case *view.DistributionData:
				row.Count = d.Count
				row.Mean = d.Mean
			}
			res = append(res, row)
		}
	}
	return res, nil
}
