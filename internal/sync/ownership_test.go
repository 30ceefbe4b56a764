package sync

import (
	"testing"

	"github.com/ferrovax/crate/internal/models"
)

func rec(kind RecordKind, key, value string, source models.Source) OwnedRecord {
	return OwnedRecord{Kind: kind, Key: key, Value: value, Source: source}
}

func assertEmpty(t *testing.T, res Resolution) {
	t.Helper()
	if len(res.Inserts)+len(res.Updates)+len(res.Deletes)+len(res.Conflicts) != 0 {
		t.Errorf("expected empty resolution, got %+v", res)
	}
}

func TestReconcile(t *testing.T) {
	importSource := models.SourceFile

	t.Run("absent record is inserted with import source", func(t *testing.T) {
		res := Reconcile(nil, []OwnedRecord{rec(RecordTag, "house", "house", "")}, importSource)

		if len(res.Inserts) != 1 {
			t.Fatalf("expected 1 insert, got %+v", res)
		}
		if res.Inserts[0].Source != importSource {
			t.Errorf("insert source = %q, want %q", res.Inserts[0].Source, importSource)
		}
		if len(res.Updates)+len(res.Deletes)+len(res.Conflicts) != 0 {
			t.Errorf("unexpected extra resolution entries: %+v", res)
		}
	})

	t.Run("owned record is updated on value change", func(t *testing.T) {
		existing := []OwnedRecord{rec(RecordRating, "rating", "75", models.SourceFile)}
		incoming := []OwnedRecord{rec(RecordRating, "rating", "83", "")}

		res := Reconcile(existing, incoming, importSource)

		if len(res.Updates) != 1 {
			t.Fatalf("expected 1 update, got %+v", res)
		}
		if res.Updates[0].Value != "83" || res.Updates[0].Source != models.SourceFile {
			t.Errorf("update = %+v", res.Updates[0])
		}
		if len(res.Conflicts) != 0 {
			t.Errorf("unexpected conflicts: %+v", res.Conflicts)
		}
	})

	t.Run("unset source counts as owned", func(t *testing.T) {
		existing := []OwnedRecord{rec(RecordNote, "note", "Old note", "")}
		incoming := []OwnedRecord{rec(RecordNote, "note", "New note", "")}

		res := Reconcile(existing, incoming, importSource)

		if len(res.Updates) != 1 || res.Updates[0].Value != "New note" {
			t.Fatalf("expected body update, got %+v", res)
		}
	})

	t.Run("equal owned value is a no-op", func(t *testing.T) {
		existing := []OwnedRecord{rec(RecordNote, "note", "Old note", models.SourceFile)}
		incoming := []OwnedRecord{rec(RecordNote, "note", "Old note", "")}

		assertEmpty(t, Reconcile(existing, incoming, importSource))
	})

	t.Run("protected record conflicts instead of updating", func(t *testing.T) {
		existing := []OwnedRecord{rec(RecordRating, "rating", "90", models.SourceUser)}
		incoming := []OwnedRecord{rec(RecordRating, "rating", "83", "")}

		res := Reconcile(existing, incoming, importSource)

		if len(res.Conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %+v", res)
		}
		if res.Conflicts[0].Existing.Value != "90" || res.Conflicts[0].Incoming.Value != "83" {
			t.Errorf("conflict = %+v", res.Conflicts[0])
		}
		if len(res.Inserts)+len(res.Updates)+len(res.Deletes) != 0 {
			t.Errorf("conflict must not mutate anything: %+v", res)
		}
	})

	t.Run("protected record with equal value raises no conflict", func(t *testing.T) {
		existing := []OwnedRecord{rec(RecordNote, "note", "Old note", models.SourceUser)}
		incoming := []OwnedRecord{rec(RecordNote, "note", "Old note", "")}

		assertEmpty(t, Reconcile(existing, incoming, importSource))
	})

	t.Run("owned row absorbs the change alongside a protected one", func(t *testing.T) {
		existing := []OwnedRecord{
			rec(RecordRating, "rating", "90", models.SourceUser),
			rec(RecordRating, "rating", "75", models.SourceFile),
		}
		incoming := []OwnedRecord{rec(RecordRating, "rating", "83", "")}

		res := Reconcile(existing, incoming, importSource)

		if len(res.Updates) != 1 || res.Updates[0].Source != models.SourceFile || res.Updates[0].Value != "83" {
			t.Fatalf("expected file-owned update, got %+v", res)
		}
		if len(res.Conflicts) != 0 {
			t.Errorf("protected row must stay silent when an owned row exists: %+v", res.Conflicts)
		}
	})

	t.Run("only import-owned absentees are deleted", func(t *testing.T) {
		existing := []OwnedRecord{
			rec(RecordTag, "chill", "chill", models.SourceFile),
			rec(RecordTag, "favorite", "favorite", models.SourceUser),
			rec(RecordTag, "mellow", "mellow", models.SourceAI),
			rec(RecordTag, "legacy", "legacy", ""),
		}

		res := Reconcile(existing, nil, importSource)

		if len(res.Deletes) != 1 || res.Deletes[0].Key != "chill" {
			t.Fatalf("expected only the file-owned tag deleted, got %+v", res.Deletes)
		}
		if len(res.Retained) != 3 {
			t.Errorf("expected 3 retained records, got %+v", res.Retained)
		}
	})

	t.Run("provider sources are protected", func(t *testing.T) {
		existing := []OwnedRecord{rec(RecordRating, "rating", "60", models.Source("mixmaster"))}
		incoming := []OwnedRecord{rec(RecordRating, "rating", "83", "")}

		res := Reconcile(existing, incoming, importSource)

		if len(res.Conflicts) != 1 || len(res.Updates) != 0 {
			t.Errorf("provider-owned record must conflict, got %+v", res)
		}

		res = Reconcile(existing, nil, importSource)
		if len(res.Deletes) != 0 || len(res.Retained) != 1 {
			t.Errorf("provider-owned record must survive absence, got %+v", res)
		}
	})

	t.Run("external edit lands while user judgments survive", func(t *testing.T) {
		// A file edited in another tool: a new label appears, the file's old
		// label is gone, and the user's own tag is untouched.
		existing := []OwnedRecord{
			rec(RecordTag, "favorite", "favorite", models.SourceUser),
			rec(RecordTag, "chill", "chill", models.SourceFile),
		}
		incoming := []OwnedRecord{
			rec(RecordTag, "energetic", "energetic", ""),
		}

		res := Reconcile(existing, incoming, importSource)

		if len(res.Inserts) != 1 || res.Inserts[0].Key != "energetic" {
			t.Errorf("expected energetic inserted, got %+v", res.Inserts)
		}
		if len(res.Deletes) != 1 || res.Deletes[0].Key != "chill" {
			t.Errorf("expected chill deleted, got %+v", res.Deletes)
		}
		if len(res.Retained) != 1 || res.Retained[0].Key != "favorite" {
			t.Errorf("expected favorite retained, got %+v", res.Retained)
		}
	})

	t.Run("kinds do not collide on key", func(t *testing.T) {
		// A tag literally labeled "note" must not be grouped with the note.
		existing := []OwnedRecord{rec(RecordNote, "note", "Old note", models.SourceUser)}
		incoming := []OwnedRecord{rec(RecordTag, "note", "note", "")}

		res := Reconcile(existing, incoming, importSource)

		if len(res.Inserts) != 1 || res.Inserts[0].Kind != RecordTag {
			t.Errorf("expected tag insert, got %+v", res)
		}
		if len(res.Conflicts) != 0 {
			t.Errorf("unexpected cross-kind conflict: %+v", res.Conflicts)
		}
	})
}
