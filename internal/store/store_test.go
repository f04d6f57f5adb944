package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		RunID:           "run-123",
		ConfigJSON:      `{"min_relation_confidence":0.85}`,
		CountersJSON:    `{"valid_relation":4}`,
		SafeRelations:   4,
		ReviewEntities:  2,
		ReviewRelations: 1,
	}
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.ID == 0 {
		t.Error("id not assigned")
	}

	got, err := s.GetRun(ctx, "run-123")
	if err != nil {
		t.Fatal(err)
	}
	if got.SafeRelations != 4 || got.CountersJSON != `{"valid_relation":4}` {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.StartedAt.IsZero() {
		t.Error("started_at not defaulted")
	}
}

func TestGetRun_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.RecordRun(ctx, &Run{RunID: id, ConfigJSON: "{}", CountersJSON: "{}"}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "c" {
		t.Errorf("unexpected order: %+v", runs)
	}
}

func TestRecordImport(t *testing.T) {
	s := newTestStore(t)
	rec := &ImportRecord{RunID: "run-123", DryRun: true, Total: 10, Created: 8, Skipped: 2}
	if err := s.RecordImport(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == 0 || rec.CreatedAt.IsZero() {
		t.Errorf("import record not filled: %+v", rec)
	}
}

func TestMarshalJSONField(t *testing.T) {
	if got := MarshalJSONField(map[string]int{"a": 1}); got != `{"a":1}` {
		t.Errorf("unexpected json: %s", got)
	}
}
