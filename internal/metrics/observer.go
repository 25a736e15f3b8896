package metrics

import (
	"tweetloader/internal/loader"
)

// Observer feeds loader progress into the installed backend.
type Observer struct {
	Job string
}

func NewObserver(job string) Observer { return Observer{Job: job} }

func (Observer) FileStarted(string)           {}
func (Observer) MemberStarted(string, string) {}

func (o Observer) BatchLoaded(s loader.BatchStats) {
	RecordBatches(o.Job, 1)
	RecordRow(o.Job, "records", int64(s.Records))
	for _, table := range loader.Tables() {
		RecordRow(o.Job, table, int64(s.Rows[table]))
	}
	RecordStep(o.Job, "batch", nil, s.Duration)
}

func (o Observer) FileFinished(s loader.FileStats) {
	RecordStep(o.Job, "file", nil, s.Duration)
}
