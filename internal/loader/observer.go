package loader

import "time"

// BatchStats describes one loaded batch.
type BatchStats struct {
	File   string // empty for LoadRecords
	Member string
	Batch  int // 1-based within the member
	// Records is the number of source records in the batch.
	Records int
	// Rows counts rows submitted per table after keep-first dedupe. Rows the
	// store skipped as duplicates are included.
	Rows       map[string]int
	Statements int
	Duration   time.Duration
}

// FileStats summarizes one input path.
type FileStats struct {
	Path     string
	Members  int
	Lines    int
	Records  int
	Batches  int
	Duration time.Duration
}

// Observer receives progress callbacks. Callbacks run synchronously on the
// loading goroutine, between statements.
type Observer interface {
	FileStarted(path string)
	MemberStarted(path, member string)
	BatchLoaded(BatchStats)
	FileFinished(FileStats)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) FileStarted(string)           {}
func (NopObserver) MemberStarted(string, string) {}
func (NopObserver) BatchLoaded(BatchStats)       {}
func (NopObserver) FileFinished(FileStats)       {}

type multiObserver []Observer

// Observers fans callbacks out to every non-nil observer, in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return NopObserver{}
	case 1:
		return m[0]
	}
	return m
}

func (m multiObserver) FileStarted(path string) {
	for _, o := range m {
		o.FileStarted(path)
	}
}

func (m multiObserver) MemberStarted(path, member string) {
	for _, o := range m {
		o.MemberStarted(path, member)
	}
}

func (m multiObserver) BatchLoaded(s BatchStats) {
	for _, o := range m {
		o.BatchLoaded(s)
	}
}

func (m multiObserver) FileFinished(s FileStats) {
	for _, o := range m {
		o.FileFinished(s)
	}
}
