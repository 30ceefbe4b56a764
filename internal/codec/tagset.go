package codec

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Property names for the crate metadata block. taglib normalizes these onto
// the right frame/atom/field per container, so one set of names covers all
// supported kinds.
const (
	propComment     = "COMMENT"
	propBPM         = "BPM"
	propKey         = "INITIALKEY"
	propLabels      = "CRATE_LABELS"
	propProviderIDs = "CRATE_PROVIDER_IDS"
)

// RatingUnset marks a TagSet with no rating.
const RatingUnset = -1

// TagSet is the uniform in-memory representation of the crate metadata block
// inside one audio file, independent of container kind.
type TagSet struct {
	Comment     string            // free text, rating prefix already stripped
	Rating      int               // 0-100, or RatingUnset
	Labels      []string          // crate labels, deduplicated and sorted
	ProviderIDs map[string]string // provider name -> provider-assigned id
	BPM         int               // 0 when absent
	Key         string            // musical key, empty when absent
}

// NewTagSet returns an empty TagSet with no rating.
func NewTagSet() *TagSet {
	return &TagSet{Rating: RatingUnset, ProviderIDs: map[string]string{}}
}

// ratingPrefix matches a three-digit rating prefix on a comment, either
// alone ("083") or followed by the separator and free text ("083 - ...").
var ratingPrefix = regexp.MustCompile(`^(\d{3})(?: - (.*))?$`)

// EncodeComment renders the comment wire format: a zero-padded three-digit
// rating prefix joined to the free text with " - ". A rated track with no
// text encodes as just the prefix.
func (ts *TagSet) EncodeComment() string {
	if ts.Rating == RatingUnset {
		return ts.Comment
	}
	if ts.Comment == "" {
		return fmt.Sprintf("%03d", ts.Rating)
	}
	return fmt.Sprintf("%03d - %s", ts.Rating, ts.Comment)
}

// DecodeComment splits a stored comment into rating and free text.
// Comments without a valid prefix yield RatingUnset and the text unchanged.
func DecodeComment(raw string) (rating int, text string) {
	m := ratingPrefix.FindStringSubmatch(raw)
	if m == nil {
		return RatingUnset, raw
	}
	value, err := strconv.Atoi(m[1])
	if err != nil || value > 100 {
		return RatingUnset, raw
	}
	return value, m[2]
}

// SetLabels replaces the label set, trimming, deduplicating and sorting so
// repeated exports are byte-stable.
func (ts *TagSet) SetLabels(labels []string) {
	seen := map[string]bool{}
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	sort.Strings(out)
	ts.Labels = out
}

// HasLabel reports whether the set carries the given label.
func (ts *TagSet) HasLabel(label string) bool {
	for _, l := range ts.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, used by the atomic writer so a failed mutate
// never leaks partial state back to the caller.
func (ts *TagSet) Clone() *TagSet {
	out := &TagSet{
		Comment: ts.Comment,
		Rating:  ts.Rating,
		BPM:     ts.BPM,
		Key:     ts.Key,
	}
	out.Labels = append([]string(nil), ts.Labels...)
	out.ProviderIDs = make(map[string]string, len(ts.ProviderIDs))
	for k, v := range ts.ProviderIDs {
		out.ProviderIDs[k] = v
	}
	return out
}

// encodeProviderIDs renders provider ids as "name:id" pairs in stable order.
func encodeProviderIDs(ids map[string]string) []string {
	if len(ids) == 0 {
		return nil
	}
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, name+":"+ids[name])
	}
	return out
}

// decodeProviderIDs parses "name:id" pairs; malformed entries are dropped.
func decodeProviderIDs(pairs []string) map[string]string {
	ids := map[string]string{}
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		ids[parts[0]] = parts[1]
	}
	return ids
}
