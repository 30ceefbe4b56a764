package sync

import "github.com/ferrovax/crate/internal/models"

// RecordKind identifies which judgment table a record belongs to.
type RecordKind int

const (
	RecordTag RecordKind = iota
	RecordNote
	RecordRating
)

func (k RecordKind) String() string {
	switch k {
	case RecordTag:
		return "tag"
	case RecordNote:
		return "note"
	case RecordRating:
		return "rating"
	default:
		return "unknown"
	}
}

// OwnedRecord is a judgment with its provenance, flattened for resolution.
// For tags the key is the label itself; notes and ratings are singletons
// keyed by their kind name.
type OwnedRecord struct {
	Kind   RecordKind
	Key    string
	Value  string
	Source models.Source
}

// Conflict reports an incoming value that collides with a protected record.
// The pass keeps the existing record and surfaces the collision instead of
// overwriting it.
type Conflict struct {
	Existing OwnedRecord
	Incoming OwnedRecord
}

// Resolution is the per-track outcome of an import reconciliation. Updates
// carry the identity of the existing row with the incoming value applied.
type Resolution struct {
	Inserts   []OwnedRecord
	Updates   []OwnedRecord
	Deletes   []OwnedRecord
	Retained  []OwnedRecord
	Conflicts []Conflict
}

type recordKey struct {
	kind RecordKind
	key  string
}

// Reconcile merges incoming records read from a file into the existing
// database records for one track, honoring ownership provenance.
//
// A record is owned by the pass when its source equals importSource or is
// unset; everything else is protected and is never modified or deleted here.
// The rules, applied per (kind, key) group:
//
//   - incoming with no existing group: insert, stamped with importSource
//   - incoming matching an owned record: update it when the value differs
//   - incoming matching only protected records: conflict, unless some
//     protected record already carries the incoming value
//   - existing importSource record absent from incoming: delete
//   - protected or unset-source record absent from incoming: retained
//
// Unset-source rows absent from incoming are retained rather than deleted:
// provenance was lost, so the conservative reading is to keep them.
func Reconcile(existing, incoming []OwnedRecord, importSource models.Source) Resolution {
	var res Resolution

	groups := make(map[recordKey][]OwnedRecord, len(existing))
	for _, rec := range existing {
		k := recordKey{rec.Kind, rec.Key}
		groups[k] = append(groups[k], rec)
	}

	seen := make(map[recordKey]bool, len(incoming))

	for _, inc := range incoming {
		k := recordKey{inc.Kind, inc.Key}
		seen[k] = true

		group := groups[k]
		if len(group) == 0 {
			inc.Source = importSource
			res.Inserts = append(res.Inserts, inc)
			continue
		}

		var owned *OwnedRecord
		for i := range group {
			if !group[i].Source.ProtectedFrom(importSource) {
				owned = &group[i]
				break
			}
		}

		if owned != nil {
			if owned.Value != inc.Value {
				updated := *owned
				updated.Value = inc.Value
				res.Updates = append(res.Updates, updated)
			}
			continue
		}

		// Only protected records hold this key. Equal value means the file
		// already agrees with a protected judgment; anything else collides.
		satisfied := false
		for _, rec := range group {
			if rec.Value == inc.Value {
				satisfied = true
				break
			}
		}
		if !satisfied {
			res.Conflicts = append(res.Conflicts, Conflict{Existing: group[0], Incoming: inc})
		}
	}

	for _, rec := range existing {
		if seen[recordKey{rec.Kind, rec.Key}] {
			continue
		}
		if rec.Source == importSource {
			res.Deletes = append(res.Deletes, rec)
		} else {
			res.Retained = append(res.Retained, rec)
		}
	}

	return res
}
