package sync

// TrackFailure records one track skipped by a pass and why. The list on a
// result is capped; the counters are always exact.
type TrackFailure struct {
	TrackID string
	Path    string
	Reason  string
}

// ExportResult summarizes one export pass.
type ExportResult struct {
	Total       int
	Written     int
	Skipped     int
	Failed      int
	Missing     int
	Interrupted bool
	Failures    []TrackFailure
}

// ImportResult summarizes one import pass. Total counts only the files the
// detector marked changed; Imported, Updated and Deleted count individual
// records, not tracks.
type ImportResult struct {
	Total       int
	Imported    int
	Updated     int
	Deleted     int
	Conflicts   int
	Unchanged   int
	Missing     int
	Failed      int
	Interrupted bool
	Failures    []TrackFailure
}

// StatusReport is a read-only snapshot of sync state. PendingImport comes
// from a live detector run; PendingExport from judgment timestamps.
type StatusReport struct {
	Tracks        int
	WithFiles     int
	PendingExport int
	PendingImport int
	MissingFiles  int
	LastSyncAt    *float64
	Active        bool
	Phase         Phase
}
