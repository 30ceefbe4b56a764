package sync

import (
	"os"

	"github.com/ferrovax/crate/internal/codec"
	"github.com/ferrovax/crate/internal/models"
)

// FileEntry pairs a tracked file with its stored change-detection baseline.
type FileEntry struct {
	TrackID       string
	Path          string
	StoredMtime   *float64 // nil when the track has never been synced
	ObservedMtime float64  // on-disk mtime from this detection run
}

// Changes partitions tracked files by what a pass must do with them.
type Changes struct {
	Unchanged []FileEntry
	Changed   []FileEntry
	Missing   []FileEntry
}

// EntriesFor builds detector input from track rows, skipping tracks with no
// local file.
func EntriesFor(tracks []*models.Track) []FileEntry {
	entries := make([]FileEntry, 0, len(tracks))
	for _, track := range tracks {
		if !track.HasLocalFile() {
			continue
		}
		entries = append(entries, FileEntry{
			TrackID:     track.ID(),
			Path:        track.Path(),
			StoredMtime: track.FileMtime(),
		})
	}
	return entries
}

// Detect partitions entries into unchanged, changed and missing.
//
// Comparison is exact: any difference between the stored and on-disk mtime,
// however small, marks the file changed. A nil stored mtime always counts as
// changed. With full set, every existing file is forced into Changed and the
// stored baseline is ignored, which is how explicit full-rescan requests
// bypass change detection.
func Detect(entries []FileEntry, full bool) Changes {
	var changes Changes

	for _, entry := range entries {
		mtime, err := codec.MtimeOf(entry.Path)
		if err != nil {
			if os.IsNotExist(err) {
				changes.Missing = append(changes.Missing, entry)
				continue
			}
			// Unreadable stat is indistinguishable from a vanished file for
			// scheduling purposes; the pass reports it as missing either way.
			changes.Missing = append(changes.Missing, entry)
			continue
		}

		entry.ObservedMtime = mtime

		if full || entry.StoredMtime == nil || *entry.StoredMtime != mtime {
			changes.Changed = append(changes.Changed, entry)
		} else {
			changes.Unchanged = append(changes.Unchanged, entry)
		}
	}

	return changes
}
