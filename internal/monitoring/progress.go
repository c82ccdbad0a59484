package monitoring

import "time"

// ScanProgress is one progress report emitted during a scan.
type ScanProgress struct {
	LocationName string
	FilesScanned int
	TotalFiles   int
	Percent      int
	Elapsed      time.Duration
}

// ProgressFunc receives progress reports during a scan. May be nil.
type ProgressFunc func(ScanProgress)

// progressReporter emits reports at fixed percent boundaries while
// files are scanned, plus a final report at completion. The completion
// report is always emitted, so a scan that just crossed 100% reports
// 100 twice.
type progressReporter struct {
	location  string
	total     int
	interval  int
	started   time.Time
	lastBound int
	report    ProgressFunc
}

func newProgressReporter(location string, total, interval int, started time.Time, report ProgressFunc) *progressReporter {
	return &progressReporter{
		location: location,
		total:    total,
		interval: interval,
		started:  started,
		report:   report,
	}
}

// fileDone records one scanned file and reports if a percent boundary
// was crossed.
func (r *progressReporter) fileDone(scanned int) {
	if r.report == nil || r.total == 0 {
		return
	}

	percent := scanned * 100 / r.total
	bound := percent / r.interval * r.interval

	if bound > r.lastBound {
		r.lastBound = bound
		r.emit(scanned, bound)
	}
}

// finish emits the completion report.
func (r *progressReporter) finish(scanned int) {
	if r.report == nil {
		return
	}

	percent := 100
	if r.total > 0 && scanned < r.total {
		percent = scanned * 100 / r.total
	}

	r.emit(scanned, percent)
}

func (r *progressReporter) emit(scanned, percent int) {
	elapsed := time.Since(r.started)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}

	r.report(ScanProgress{
		LocationName: r.location,
		FilesScanned: scanned,
		TotalFiles:   r.total,
		Percent:      percent,
		Elapsed:      elapsed,
	})
}
