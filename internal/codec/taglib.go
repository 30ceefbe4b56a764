package codec

import (
	"strconv"

	"go.senan.xyz/taglib"
)

// TaglibAdapter implements [Adapter] over the taglib property map, which
// normalizes ID3 frames, MP4 atoms and vorbis comments onto shared keys.
type TaglibAdapter struct{}

// NewTaglibAdapter creates the production adapter.
func NewTaglibAdapter() *TaglibAdapter {
	return &TaglibAdapter{}
}

// Read parses the crate metadata block out of the file's tag container.
func (a *TaglibAdapter) Read(path string) (*TagSet, error) {
	if _, err := DetectKind(path); err != nil {
		return nil, err
	}

	raw, err := taglib.ReadTags(path)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrCorrupt, Err: err}
	}

	ts := NewTagSet()
	ts.Rating, ts.Comment = DecodeComment(first(raw[propComment]))
	ts.SetLabels(raw[propLabels])
	ts.ProviderIDs = decodeProviderIDs(raw[propProviderIDs])
	ts.Key = first(raw[propKey])
	if bpm, err := strconv.Atoi(first(raw[propBPM])); err == nil && bpm > 0 {
		ts.BPM = bpm
	}

	return ts, nil
}

// Write replaces the crate metadata block in the file's tag container.
// Title/artist and other non-crate properties are left alone; crate-owned
// keys with no value are cleared so stale state cannot survive an export.
func (a *TaglibAdapter) Write(path string, ts *TagSet) error {
	if _, err := DetectKind(path); err != nil {
		return err
	}

	props := map[string][]string{
		propComment:     {},
		propLabels:      {},
		propProviderIDs: {},
		propKey:         {},
		propBPM:         {},
	}

	if comment := ts.EncodeComment(); comment != "" {
		props[propComment] = []string{comment}
	}
	if len(ts.Labels) > 0 {
		props[propLabels] = append([]string(nil), ts.Labels...)
	}
	if pairs := encodeProviderIDs(ts.ProviderIDs); len(pairs) > 0 {
		props[propProviderIDs] = pairs
	}
	if ts.Key != "" {
		props[propKey] = []string{ts.Key}
	}
	if ts.BPM > 0 {
		props[propBPM] = []string{strconv.Itoa(ts.BPM)}
	}

	if err := taglib.WriteTags(path, props, 0); err != nil {
		return &Error{Path: path, Kind: ErrCorrupt, Err: err}
	}
	return nil
}

// ReadBasic reads display metadata (title, artist, album) for library scans.
func (a *TaglibAdapter) ReadBasic(path string) (title, artist, album string, err error) {
	if _, err := DetectKind(path); err != nil {
		return "", "", "", err
	}

	raw, err := taglib.ReadTags(path)
	if err != nil {
		return "", "", "", &Error{Path: path, Kind: ErrCorrupt, Err: err}
	}

	return first(raw[taglib.Title]), first(raw[taglib.Artist]), first(raw[taglib.Album]), nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
