package extract

import (
	"testing"

	"github.com/factgate/factgate/internal/canon"
	"github.com/factgate/factgate/internal/validate"
)

func wikiID(id int64) *int64 { return &id }

func testIndex() *canon.Index {
	ix := canon.NewIndex()
	ix.Load(canon.TypePlayer, []canon.Record{
		{Name: "Nguyễn Quang Hải", WikiID: wikiID(101)},
	})
	ix.Load(canon.TypeCoach, []canon.Record{
		{Name: "Park Hang-seo", WikiID: wikiID(150)},
	})
	ix.Load(canon.TypeClub, []canon.Record{
		{Name: "Hà Nội FC", WikiID: wikiID(201)},
		{Name: "Hoàng Anh Gia Lai", WikiID: wikiID(202)},
	})
	ix.Load(canon.TypeCompetition, []canon.Record{
		{Name: "V.League", WikiID: wikiID(301)},
	})
	return ix
}

func newTestExtractor() *Extractor {
	return NewExtractor(testIndex(), validate.NewStats())
}

func cand(text, entityType string) validate.CandidateEntity {
	return validate.CandidateEntity{Text: text, Type: entityType, Confidence: 1.0, Source: validate.ProvenanceDictionary}
}

func findByPattern(rels []validate.CandidateRelation, pattern string) []validate.CandidateRelation {
	var out []validate.CandidateRelation
	for _, r := range rels {
		if r.Pattern == pattern {
			out = append(out, r)
		}
	}
	return out
}

func TestMatchEntities(t *testing.T) {
	x := newTestExtractor()

	matched := x.MatchEntities([]validate.CandidateEntity{
		cand("Nguyễn Quang Hải", canon.TypePlayer),
		cand("Cầu Thủ Vô Danh", canon.TypePlayer), // not in index
		cand("Hà Nội FC", canon.TypeClub),
	})
	if len(matched) != 2 {
		t.Fatalf("expected 2 matched entities, got %d", len(matched))
	}
	if matched[0].Candidate.WikiID == nil || *matched[0].Candidate.WikiID != 101 {
		t.Error("wiki id not filled from matched record")
	}
}

func TestExtract_CoOccurrencePlayerClub(t *testing.T) {
	x := newTestExtractor()
	sentence := "Nguyễn Quang Hải thi đấu cho Hà Nội FC từ năm 2016"

	matched := x.MatchEntities([]validate.CandidateEntity{
		cand("Nguyễn Quang Hải", canon.TypePlayer),
		cand("Hà Nội FC", canon.TypeClub),
	})
	rels := x.Extract(matched, sentence)

	got := findByPattern(rels, "co_occurrence_player_club")
	if len(got) != 1 {
		t.Fatalf("expected 1 co-occurrence candidate, got %d (all: %d)", len(got), len(rels))
	}
	r := got[0]
	if r.Predicate != "PLAYED_FOR" || r.Confidence != 0.75 {
		t.Errorf("unexpected candidate: %+v", r)
	}
	if r.Subject.Text != "Nguyễn Quang Hải" || r.Object.Text != "Hà Nội FC" {
		t.Errorf("wrong endpoints: %s -> %s", r.Subject.Text, r.Object.Text)
	}
	if r.Source != validate.ProvenancePattern {
		t.Errorf("expected pattern provenance, got %s", r.Source)
	}
}

func TestExtract_NoKeywordNoCoOccurrence(t *testing.T) {
	x := newTestExtractor()

	// Both entities present but the sentence carries no trigger keyword
	// and matches no surface-form rule.
	matched := x.MatchEntities([]validate.CandidateEntity{
		cand("Nguyễn Quang Hải", canon.TypePlayer),
		cand("Hà Nội FC", canon.TypeClub),
	})
	rels := x.Extract(matched, "Nguyễn Quang Hải gặp Hà Nội FC hôm đó")
	if len(rels) != 0 {
		t.Errorf("expected no candidates, got %+v", rels)
	}
}

func TestExtract_SingleEntityYieldsNothing(t *testing.T) {
	x := newTestExtractor()
	matched := x.MatchEntities([]validate.CandidateEntity{
		cand("Nguyễn Quang Hải", canon.TypePlayer),
	})
	if rels := x.Extract(matched, "Nguyễn Quang Hải thi đấu rất hay"); rels != nil {
		t.Errorf("expected nil, got %+v", rels)
	}
}

func TestExtract_ExplicitCoachPattern(t *testing.T) {
	x := newTestExtractor()
	sentence := "HLV Park Hang-seo dẫn dắt Hà Nội FC"

	matched := x.MatchEntities([]validate.CandidateEntity{
		cand("Park Hang-seo", canon.TypeCoach),
		cand("Hà Nội FC", canon.TypeClub),
	})
	rels := x.Extract(matched, sentence)

	got := findByPattern(rels, "coached_team")
	if len(got) != 1 {
		t.Fatalf("expected 1 coached_team candidate, got %d (all: %+v)", len(got), rels)
	}
	r := got[0]
	if r.Predicate != "COACHED" || r.Confidence != 0.85 {
		t.Errorf("unexpected candidate: %+v", r)
	}
	if r.Subject.Text != "Park Hang-seo" || r.Object.Text != "Hà Nội FC" {
		t.Errorf("wrong endpoints: %s -> %s", r.Subject.Text, r.Object.Text)
	}

	// The same sentence also satisfies the coach/club co-occurrence
	// keywords.
	if co := findByPattern(rels, "co_occurrence_coach_club"); len(co) != 1 {
		t.Errorf("expected 1 co-occurrence candidate, got %d", len(co))
	}
}

func TestExtract_CapturedGroupsAnchorDirection(t *testing.T) {
	x := newTestExtractor()
	sentence := "Hà Nội FC đánh bại Hoàng Anh Gia Lai"

	matched := x.MatchEntities([]validate.CandidateEntity{
		cand("Hà Nội FC", canon.TypeClub),
		cand("Hoàng Anh Gia Lai", canon.TypeClub),
	})
	rels := x.Extract(matched, sentence)

	if len(rels) != 1 {
		t.Fatalf("expected exactly 1 candidate, got %+v", rels)
	}
	r := rels[0]
	if r.Pattern != "defeated_team" || r.Predicate != "DEFEATED" {
		t.Fatalf("unexpected candidate: %+v", r)
	}
	// The capture groups pin which club is subject and which is object.
	if r.Subject.Text != "Hà Nội FC" || r.Object.Text != "Hoàng Anh Gia Lai" {
		t.Errorf("wrong direction: %s -> %s", r.Subject.Text, r.Object.Text)
	}
	if x.stats.Get("defeated_team") != 1 {
		t.Error("rule hit counter not bumped")
	}
}

func TestDefaultPatternRulesCompile(t *testing.T) {
	rules := DefaultPatternRules()
	if len(rules) != 8 {
		t.Fatalf("expected 8 rules, got %d", len(rules))
	}
	seen := make(map[string]bool)
	for _, r := range rules {
		if seen[r.Name] {
			t.Errorf("duplicate rule name %s", r.Name)
		}
		seen[r.Name] = true
		if r.Regex == nil || r.Predicate == "" || r.SubjectType == "" || r.ObjectType == "" {
			t.Errorf("incomplete rule %+v", r)
		}
	}
}
