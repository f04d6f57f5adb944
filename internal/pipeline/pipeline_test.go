package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/factgate/factgate/internal/canon"
	"github.com/factgate/factgate/internal/validate"
)

func wikiID(id int64) *int64 { return &id }

func fullIndex() *canon.Index {
	ix := canon.NewIndex()
	ix.Load(canon.TypePlayer, []canon.Record{
		{Name: "Nguyễn Văn A", WikiID: wikiID(11)},
	})
	ix.Load(canon.TypeClub, []canon.Record{
		{Name: "Club X", WikiID: wikiID(12)},
	})
	return ix
}

func playerOnlyIndex() *canon.Index {
	ix := canon.NewIndex()
	ix.Load(canon.TypePlayer, []canon.Record{
		{Name: "Nguyễn Văn A", WikiID: wikiID(11)},
	})
	return ix
}

func mustPipeline(t *testing.T, cfg validate.Config, ix *canon.Index, workers int) *Pipeline {
	t.Helper()
	p, err := New(cfg, ix, workers)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func recordLine(t *testing.T, rec SentenceRecord) string {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func dictCand(text, entityType string) validate.CandidateEntity {
	return validate.CandidateEntity{Text: text, Type: entityType, Confidence: 1.0, Source: validate.ProvenanceDictionary}
}

func TestNew_EmptyIndexIsFatal(t *testing.T) {
	if _, err := New(validate.DefaultConfig(), canon.NewIndex(), 1); err == nil {
		t.Fatal("expected error for empty index")
	}
}

func TestRun_BothEndpointsExistingGoesSafe(t *testing.T) {
	p := mustPipeline(t, validate.DefaultConfig(), fullIndex(), 1)

	line := recordLine(t, SentenceRecord{
		Sentence: "Nguyễn Văn A thi đấu cho Club X",
		Entities: []validate.CandidateEntity{
			dictCand("Nguyễn Văn A", canon.TypePlayer),
			dictCand("Club X", canon.TypeClub),
		},
	})
	res, err := p.Run(context.Background(), strings.NewReader(line+"\n"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.SafeRelations) == 0 {
		t.Fatalf("expected safe relations, counters: %v", res.Stats.Counts())
	}
	for _, r := range res.SafeRelations {
		if r.Subject.IsNew || r.Object.IsNew {
			t.Errorf("safe relation with new endpoint: %+v", r)
		}
		if r.Predicate != "PLAYED_FOR" {
			t.Errorf("unexpected predicate %s", r.Predicate)
		}
	}
	if len(res.ReviewEntities) != 0 {
		t.Errorf("no entity is new, got %d review entities", len(res.ReviewEntities))
	}
}

func TestRun_NewEndpointRoutesToReview(t *testing.T) {
	cfg := validate.DefaultConfig()
	cfg.RequireBothEndpointsExist = false
	p := mustPipeline(t, cfg, playerOnlyIndex(), 1)

	// "Club X" has no canonical match: it becomes a review entity, the
	// annotator-tagged relation validates but lands in review, not safe.
	rec := SentenceRecord{
		Sentence: "Nguyễn Văn A thi đấu cho Club X tại V.League",
		Entities: []validate.CandidateEntity{
			dictCand("Nguyễn Văn A", canon.TypePlayer),
			dictCand("Club X", canon.TypeClub),
		},
		Relations: []validate.CandidateRelation{
			{
				Subject:    dictCand("Nguyễn Văn A", canon.TypePlayer),
				Predicate:  "PLAYED_FOR",
				Object:     dictCand("Club X", canon.TypeClub),
				Confidence: 0.9,
				Source:     validate.ProvenanceModel,
			},
		},
	}
	res, err := p.Run(context.Background(), strings.NewReader(recordLine(t, rec)+"\n"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.SafeRelations) != 0 {
		t.Errorf("relation with new endpoint must not be safe: %+v", res.SafeRelations)
	}
	if len(res.ReviewRelations) != 1 {
		t.Fatalf("expected 1 review relation, got %d (counters %v)", len(res.ReviewRelations), res.Stats.Counts())
	}
	if len(res.ReviewEntities) != 1 || res.ReviewEntities[0].Text != "Club X" {
		t.Fatalf("expected Club X in review entities, got %+v", res.ReviewEntities)
	}
}

func TestRun_StrictPolicyRejectsNewEndpointRelations(t *testing.T) {
	p := mustPipeline(t, validate.DefaultConfig(), playerOnlyIndex(), 1)

	rec := SentenceRecord{
		Sentence: "Nguyễn Văn A thi đấu cho Club X tại V.League",
		Entities: []validate.CandidateEntity{
			dictCand("Nguyễn Văn A", canon.TypePlayer),
			dictCand("Club X", canon.TypeClub),
		},
		Relations: []validate.CandidateRelation{
			{
				Subject:    dictCand("Nguyễn Văn A", canon.TypePlayer),
				Predicate:  "PLAYED_FOR",
				Object:     dictCand("Club X", canon.TypeClub),
				Confidence: 0.9,
				Source:     validate.ProvenanceModel,
			},
		},
	}
	res, err := p.Run(context.Background(), strings.NewReader(recordLine(t, rec)+"\n"))
	if err != nil {
		t.Fatal(err)
	}

	// Under the default policy the review-relations partition is empty
	// by construction; the new entity still reaches review.
	if len(res.SafeRelations) != 0 || len(res.ReviewRelations) != 0 {
		t.Errorf("unexpected relations: safe=%d review=%d", len(res.SafeRelations), len(res.ReviewRelations))
	}
	if res.Stats.Get("relation_entity_not_exist") != 1 {
		t.Errorf("counters: %v", res.Stats.Counts())
	}
	if len(res.ReviewEntities) != 1 {
		t.Errorf("expected Club X in review entities, got %+v", res.ReviewEntities)
	}
}

func TestRun_MalformedLineSkipped(t *testing.T) {
	p := mustPipeline(t, validate.DefaultConfig(), fullIndex(), 1)

	input := "{not json}\n" + recordLine(t, SentenceRecord{Sentence: "câu vô hại"}) + "\n"
	res, err := p.Run(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Get("malformed_lines") != 1 {
		t.Errorf("counters: %v", res.Stats.Counts())
	}
	if res.Stats.Get("total_sentences") != 1 {
		t.Errorf("good line after bad one not processed: %v", res.Stats.Counts())
	}
}

func TestRun_Idempotent(t *testing.T) {
	input := recordLine(t, SentenceRecord{
		Sentence: "Nguyễn Văn A thi đấu cho Club X",
		Entities: []validate.CandidateEntity{
			dictCand("Nguyễn Văn A", canon.TypePlayer),
			dictCand("Club X", canon.TypeClub),
		},
	}) + "\n"

	run := func() *Result {
		p := mustPipeline(t, validate.DefaultConfig(), fullIndex(), 1)
		res, err := p.Run(context.Background(), strings.NewReader(input))
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a.Stats.Counts(), b.Stats.Counts()) {
		t.Errorf("counters differ: %v vs %v", a.Stats.Counts(), b.Stats.Counts())
	}
	if len(a.SafeRelations) != len(b.SafeRelations) {
		t.Errorf("safe partitions differ: %d vs %d", len(a.SafeRelations), len(b.SafeRelations))
	}
}

func TestRun_WorkersMatchSequential(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, recordLine(t, SentenceRecord{
			Sentence: "Nguyễn Văn A thi đấu cho Club X",
			Entities: []validate.CandidateEntity{
				dictCand("Nguyễn Văn A", canon.TypePlayer),
				dictCand("Club X", canon.TypeClub),
			},
		}))
	}
	input := strings.Join(lines, "\n") + "\n"

	seq := mustPipeline(t, validate.DefaultConfig(), fullIndex(), 1)
	par := mustPipeline(t, validate.DefaultConfig(), fullIndex(), 4)

	a, err := seq.Run(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	b, err := par.Run(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a.Stats.Counts(), b.Stats.Counts()) {
		t.Errorf("counters differ: %v vs %v", a.Stats.Counts(), b.Stats.Counts())
	}
	if len(a.SafeRelations) != len(b.SafeRelations) {
		t.Errorf("safe partitions differ: %d vs %d", len(a.SafeRelations), len(b.SafeRelations))
	}
}

func TestRunFile_MissingInputIsEmptyRun(t *testing.T) {
	p := mustPipeline(t, validate.DefaultConfig(), fullIndex(), 1)
	res, err := p.RunFile(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Get("total_sentences") != 0 {
		t.Errorf("expected empty run, got %v", res.Stats.Counts())
	}
}

func TestExport_DedupAndShapes(t *testing.T) {
	cfg := validate.DefaultConfig()
	cfg.RequireBothEndpointsExist = false
	p := mustPipeline(t, cfg, playerOnlyIndex(), 1)

	// The same sentence twice: dedup must collapse the duplicate entity
	// and relation at export.
	line := recordLine(t, SentenceRecord{
		Sentence: "Nguyễn Văn A thi đấu cho Club X tại V.League",
		Entities: []validate.CandidateEntity{
			dictCand("Nguyễn Văn A", canon.TypePlayer),
			dictCand("Club X", canon.TypeClub),
		},
		Relations: []validate.CandidateRelation{
			{
				Subject:    dictCand("Nguyễn Văn A", canon.TypePlayer),
				Predicate:  "PLAYED_FOR",
				Object:     dictCand("Club X", canon.TypeClub),
				Confidence: 0.9,
				Source:     validate.ProvenanceModel,
			},
		},
	})
	res, err := p.Run(context.Background(), strings.NewReader(line+"\n"+line+"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ReviewEntities) != 2 || len(res.ReviewRelations) != 2 {
		t.Fatalf("expected undeduplicated partitions before export, got %d/%d",
			len(res.ReviewEntities), len(res.ReviewRelations))
	}

	dir := t.TempDir()
	paths := ExportPaths{
		SafeRelations:   filepath.Join(dir, "safe_relations.jsonl"),
		ReviewEntities:  filepath.Join(dir, "review_entities.jsonl"),
		ReviewRelations: filepath.Join(dir, "review_relations.jsonl"),
		Report:          filepath.Join(dir, "report.json"),
	}
	report, err := Export(res, cfg, paths)
	if err != nil {
		t.Fatal(err)
	}

	if report.ReviewEntities != 1 || report.ReviewRelations != 1 || report.SafeRelations != 0 {
		t.Errorf("unexpected report partitions: %+v", report)
	}
	if report.RunID == "" {
		t.Error("missing run id")
	}
	if report.Config.MinRelationConfidence != cfg.MinRelationConfidence {
		t.Error("config snapshot not carried")
	}

	raw, err := os.ReadFile(paths.ReviewEntities)
	if err != nil {
		t.Fatal(err)
	}
	entLines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(entLines) != 1 {
		t.Fatalf("expected 1 review entity line, got %d", len(entLines))
	}

	var ent map[string]json.RawMessage
	if err := json.Unmarshal([]byte(entLines[0]), &ent); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"approved", "corrected_type", "corrected_text", "reject_reason"} {
		raw, ok := ent[field]
		if !ok {
			t.Errorf("missing decision field %s", field)
			continue
		}
		if string(raw) != "null" {
			t.Errorf("decision field %s should be null, got %s", field, raw)
		}
	}
}

func TestDedupKeepsFirst(t *testing.T) {
	a := &validate.ValidatedEntity{Text: "Club X", Type: canon.TypeClub, Confidence: 1.0}
	b := &validate.ValidatedEntity{Text: "club  x", Type: canon.TypeClub, Confidence: 0.95}
	out := DedupEntities([]*validate.ValidatedEntity{a, b})
	if len(out) != 1 || out[0] != a {
		t.Errorf("expected first occurrence kept, got %+v", out)
	}
}
