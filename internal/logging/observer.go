package logging

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"tweetloader/internal/loader"
)

// Observer logs load progress: one line per batch at info level and one per
// finished file, with humanized counts and throughput.
type Observer struct {
	log   *slog.Logger
	start time.Time
	total int64
}

func NewObserver(l *slog.Logger) *Observer {
	return &Observer{log: l, start: time.Now()}
}

func (o *Observer) FileStarted(path string) {
	o.log.Info("loading file", "path", path)
}

func (o *Observer) MemberStarted(path, member string) {
	o.log.Debug("loading member", "path", path, "member", member)
}

func (o *Observer) BatchLoaded(s loader.BatchStats) {
	o.total += int64(s.Records)
	rows := 0
	for _, n := range s.Rows {
		rows += n
	}
	o.log.Info("batch loaded",
		"member", s.Member,
		"batch", s.Batch,
		"records", humanize.Comma(int64(s.Records)),
		"rows", humanize.Comma(int64(rows)),
		"statements", s.Statements,
		"rps", rate(s.Records, s.Duration),
		"took", s.Duration.Truncate(time.Millisecond),
		"total_records", humanize.Comma(o.total),
		"elapsed", time.Since(o.start).Truncate(time.Millisecond),
	)
}

func (o *Observer) FileFinished(s loader.FileStats) {
	o.log.Info("file loaded",
		"path", s.Path,
		"members", s.Members,
		"lines", humanize.Comma(int64(s.Lines)),
		"records", humanize.Comma(int64(s.Records)),
		"batches", s.Batches,
		"rps", rate(s.Records, s.Duration),
		"took", s.Duration.Truncate(time.Millisecond),
	)
}

// rate renders records per second, or "-" when the duration is too short
// to measure.
func rate(n int, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return humanize.CommafWithDigits(float64(n)/d.Seconds(), 0)
}
