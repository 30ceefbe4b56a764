// package formatter renders tracks and sync pass results for the CLI (styled text, CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/shared"
	"github.com/ferrovax/crate/internal/sync"
)

// trackView is the serializable projection of a track for JSON output.
type trackView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Provider string `json:"provider"`
	Path     string `json:"path,omitempty"`
}

func viewOf(track *models.Track) trackView {
	return trackView{
		ID:       track.ID(),
		Title:    track.Title(),
		Artist:   track.Artist(),
		Album:    track.Album(),
		Provider: track.Provider(),
		Path:     track.Path(),
	}
}

// TracksToCSV converts tracks to CSV with columns: ID, Title, Artist, Album, Provider, Path
func TracksToCSV(tracks []*models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Provider", "Path"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.ID(),
			track.Title(),
			track.Artist(),
			track.Album(),
			track.Provider(),
			track.Path(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// TracksToMarkdown converts tracks to a Markdown listing under the given title
func TracksToMarkdown(title string, tracks []*models.Track) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(tracks)))

	for i, track := range tracks {
		albumPart := ""
		if track.Album() != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album())
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s\n", i+1, track.Artist(), track.Title(), albumPart))
	}

	return buf.Bytes()
}

// TracksToText converts tracks to a numbered plain text listing
func TracksToText(tracks []*models.Track) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(tracks)))
	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.Artist(), track.Title()))
	}

	return buf.Bytes()
}

// TracksToJSON converts tracks to an indented JSON array
func TracksToJSON(tracks []*models.Track) ([]byte, error) {
	views := make([]trackView, 0, len(tracks))
	for _, track := range tracks {
		views = append(views, viewOf(track))
	}
	return shared.MarshalJSON(views, true)
}

// WriteLibraryExport writes the library listing to path in the given format
// (csv, markdown, txt or json). An empty path derives one from the format.
func WriteLibraryExport(tracks []*models.Track, format, path string) (string, error) {
	var (
		data []byte
		err  error
	)

	switch format {
	case "csv":
		if path == "" {
			path = "crate_library.csv"
		}
		data, err = TracksToCSV(tracks)
	case "markdown":
		if path == "" {
			path = "crate_library.md"
		}
		data = TracksToMarkdown("Library", tracks)
	case "txt":
		if path == "" {
			path = "crate_library.txt"
		}
		data = TracksToText(tracks)
	case "json", "":
		if path == "" {
			path = "crate_library.json"
		}
		data, err = TracksToJSON(tracks)
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render library export: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write library export: %w", err)
	}
	return path, nil
}

// ExportReport renders an export pass result for the terminal.
func ExportReport(res *sync.ExportResult) string {
	var lines []string

	if res.Interrupted {
		lines = append(lines, styles.warn.Render("Export interrupted (partial pass committed)"))
	} else {
		lines = append(lines, styles.title.Render("Export complete"))
	}

	lines = append(lines, styles.ok.Render(fmt.Sprintf("  written: %d", res.Written)))
	lines = append(lines, styles.help.Render(fmt.Sprintf("  skipped: %d already current", res.Skipped)))
	if res.Missing > 0 {
		lines = append(lines, styles.warn.Render(fmt.Sprintf("  missing files: %d", res.Missing)))
	}
	if res.Failed > 0 {
		lines = append(lines, styles.err.Render(fmt.Sprintf("  failed: %d", res.Failed)))
	}
	lines = append(lines, failureLines(res.Failures, res.Failed)...)

	return strings.Join(lines, "\n")
}

// ImportReport renders an import pass result for the terminal.
func ImportReport(res *sync.ImportResult) string {
	var lines []string

	if res.Interrupted {
		lines = append(lines, styles.warn.Render("Import interrupted (partial pass committed)"))
	} else {
		lines = append(lines, styles.title.Render("Import complete"))
	}

	lines = append(lines, styles.help.Render(fmt.Sprintf("  changed files: %d (%d unchanged)", res.Total, res.Unchanged)))
	lines = append(lines, styles.ok.Render(fmt.Sprintf("  records: %d imported, %d updated, %d deleted", res.Imported, res.Updated, res.Deleted)))
	if res.Conflicts > 0 {
		lines = append(lines, styles.warn.Render(fmt.Sprintf("  conflicts: %d (protected records kept)", res.Conflicts)))
	}
	if res.Missing > 0 {
		lines = append(lines, styles.warn.Render(fmt.Sprintf("  missing files: %d", res.Missing)))
	}
	if res.Failed > 0 {
		lines = append(lines, styles.err.Render(fmt.Sprintf("  failed: %d", res.Failed)))
	}
	lines = append(lines, failureLines(res.Failures, res.Failed)...)

	return strings.Join(lines, "\n")
}

// ScanReport renders a library scan result for the terminal.
func ScanReport(res *sync.ScanResult) string {
	lines := []string{
		styles.title.Render("Scan complete"),
		styles.ok.Render(fmt.Sprintf("  added: %d new tracks", res.Added)),
		styles.help.Render(fmt.Sprintf("  known: %d of %d discovered files", res.Known, res.Discovered)),
	}
	if res.Moved > 0 {
		lines = append(lines, styles.ok.Render(fmt.Sprintf("  relocated: %d moved files", res.Moved)))
	}
	if res.Failed > 0 {
		lines = append(lines, styles.err.Render(fmt.Sprintf("  failed: %d", res.Failed)))
	}
	lines = append(lines, failureLines(res.Failures, res.Failed)...)

	return strings.Join(lines, "\n")
}

// StatusText renders a status report for the terminal.
func StatusText(rep *sync.StatusReport) string {
	lines := []string{
		styles.title.Render("Sync status"),
		fmt.Sprintf("  tracks: %d (%d with local files)", rep.Tracks, rep.WithFiles),
		fmt.Sprintf("  pending export: %d", rep.PendingExport),
		fmt.Sprintf("  pending import: %d", rep.PendingImport),
	}
	if rep.MissingFiles > 0 {
		lines = append(lines, styles.warn.Render(fmt.Sprintf("  missing files: %d", rep.MissingFiles)))
	}
	lines = append(lines, fmt.Sprintf("  last sync: %s", formatEpoch(rep.LastSyncAt)))

	if rep.Active {
		lines = append(lines, styles.ok.Render(fmt.Sprintf("  pass running: %s", rep.Phase)))
	} else {
		lines = append(lines, styles.help.Render("  no pass running"))
	}

	return strings.Join(lines, "\n")
}

func failureLines(failures []sync.TrackFailure, total int) []string {
	if len(failures) == 0 {
		return nil
	}

	lines := make([]string, 0, len(failures)+1)
	for _, f := range failures {
		target := f.Path
		if target == "" {
			target = f.TrackID
		}
		lines = append(lines, styles.warn.Render(fmt.Sprintf("    %s: %s", target, f.Reason)))
	}
	if total > len(failures) {
		lines = append(lines, styles.help.Render(fmt.Sprintf("    ... and %d more", total-len(failures))))
	}
	return lines
}

func formatEpoch(epoch *float64) string {
	if epoch == nil {
		return "never"
	}
	return time.Unix(0, int64(*epoch*1e9)).Format("2006-01-02 15:04:05")
}
