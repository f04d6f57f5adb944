package validate

import (
	"strings"
	"testing"

	"github.com/factgate/factgate/internal/canon"
)

func newTestRelationValidator(cfg Config) *RelationValidator {
	return NewRelationValidator(cfg, newTestValidator(cfg))
}

func playedFor(subject, object string, conf float64) CandidateRelation {
	return CandidateRelation{
		Subject:    dictEntity(subject, canon.TypePlayer),
		Predicate:  "PLAYED_FOR",
		Object:     dictEntity(object, canon.TypeClub),
		Confidence: conf,
		Source:     ProvenancePattern,
	}
}

func TestRelationValidate_BothEndpointsExisting(t *testing.T) {
	v := newTestRelationValidator(DefaultConfig())

	out := v.Validate(playedFor("Nguyễn Quang Hải", "Hà Nội FC", 0.9), "Quang Hải thi đấu cho Hà Nội FC")
	if !out.Accepted() {
		t.Fatalf("expected valid relation, got %s", out.Reason)
	}
	if out.Relation.Subject.IsNew || out.Relation.Object.IsNew {
		t.Error("both endpoints should be existing")
	}
	if v.Stats().Get(statRelationValid) != 1 {
		t.Error("valid_relation counter not bumped")
	}
}

func TestRelationValidate_InvalidSubject(t *testing.T) {
	v := newTestRelationValidator(DefaultConfig())

	rel := playedFor("Nguyễn Quang Hải", "Hà Nội FC", 0.9)
	rel.Subject.Type = "POSITION"
	out := v.Validate(rel, "câu bất kỳ")
	if out.Accepted() || out.Reason != statRelationInvalidSubject {
		t.Errorf("expected %s, got %+v", statRelationInvalidSubject, out)
	}
}

func TestRelationValidate_InvalidObject(t *testing.T) {
	v := newTestRelationValidator(DefaultConfig())

	rel := playedFor("Nguyễn Quang Hải", "Manchester United", 0.9)
	out := v.Validate(rel, "câu bất kỳ")
	if out.Accepted() || out.Reason != statRelationInvalidObject {
		t.Errorf("expected %s, got %+v", statRelationInvalidObject, out)
	}
}

func TestRelationValidate_NewEndpointRejectedWhenRequired(t *testing.T) {
	v := newTestRelationValidator(DefaultConfig())

	// "CLB Trẻ Tây Ninh" is a valid new entity, but the default policy
	// requires both endpoints to pre-exist.
	rel := playedFor("Nguyễn Quang Hải", "CLB Trẻ Tây Ninh", 0.9)
	out := v.Validate(rel, "thi đấu tại V.League")
	if out.Accepted() || out.Reason != statRelationEndpointNew {
		t.Errorf("expected %s, got %+v", statRelationEndpointNew, out)
	}
}

func TestRelationValidate_NewEndpointAllowedWhenPolicyRelaxed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireBothEndpointsExist = false
	v := newTestRelationValidator(cfg)

	rel := playedFor("Nguyễn Quang Hải", "CLB Trẻ Tây Ninh", 0.9)
	out := v.Validate(rel, "thi đấu tại V.League")
	if !out.Accepted() {
		t.Fatalf("expected relation with new endpoint to pass, got %s", out.Reason)
	}
	if !out.Relation.Object.IsNew {
		t.Error("object should be flagged new")
	}
}

func TestRelationValidate_ConfidenceFloor(t *testing.T) {
	v := newTestRelationValidator(DefaultConfig())

	out := v.Validate(playedFor("Nguyễn Quang Hải", "Hà Nội FC", 0.80), "Quang Hải thi đấu cho Hà Nội FC")
	if out.Accepted() || out.Reason != statRelationLowConfidence {
		t.Errorf("expected %s, got %+v", statRelationLowConfidence, out)
	}
}

func TestRelationValidate_ExtractedFloorIsLooser(t *testing.T) {
	v := newTestRelationValidator(DefaultConfig())

	// 0.75 fails the annotator floor but an extraction-rule candidate
	// (pattern name set) clears the extracted floor.
	rel := playedFor("Nguyễn Quang Hải", "Hà Nội FC", 0.75)
	rel.Pattern = "co_occurrence_player_club"
	out := v.Validate(rel, "Quang Hải thi đấu cho Hà Nội FC")
	if !out.Accepted() {
		t.Fatalf("expected extracted candidate to pass, got %s", out.Reason)
	}

	rel.Confidence = 0.65
	if out := v.Validate(rel, "Quang Hải thi đấu cho Hà Nội FC"); out.Accepted() || out.Reason != statRelationLowConfidence {
		t.Errorf("expected %s, got %+v", statRelationLowConfidence, out)
	}
}

func TestRelationValidate_ContextFallbackAndTruncation(t *testing.T) {
	v := newTestRelationValidator(DefaultConfig())

	long := strings.Repeat("Quang Hải thi đấu cho Hà Nội FC. ", 20)
	out := v.Validate(playedFor("Nguyễn Quang Hải", "Hà Nội FC", 0.9), long)
	if !out.Accepted() {
		t.Fatalf("expected valid relation, got %s", out.Reason)
	}
	if got := len([]rune(out.Relation.Context)); got != 200 {
		t.Errorf("expected context capped at 200 runes, got %d", got)
	}

	// An explicit candidate context wins over the sentence.
	rel := playedFor("Nguyễn Quang Hải", "Hà Nội FC", 0.9)
	rel.Context = "ngữ cảnh riêng"
	out = v.Validate(rel, long)
	if out.Relation.Context != "ngữ cảnh riêng" {
		t.Errorf("expected candidate context to win, got %q", out.Relation.Context)
	}
}

func TestValidatedRelationKey(t *testing.T) {
	a := int64(101)
	b := int64(201)
	rel := &ValidatedRelation{
		Subject:   ValidatedEntity{Text: "Nguyễn Quang Hải", Type: canon.TypePlayer, WikiID: &a},
		Predicate: "PLAYED_FOR",
		Object:    ValidatedEntity{Text: "Hà Nội FC", Type: canon.TypeClub, WikiID: &b},
	}
	if rel.Key() != "wiki:101\x00PLAYED_FOR\x00wiki:201" {
		t.Errorf("unexpected key %q", rel.Key())
	}
}

func TestStatsMerge(t *testing.T) {
	a := NewStats()
	a.bump("valid_relation")
	a.bump("valid_relation")
	b := NewStats()
	b.bump("valid_relation")
	b.bump("blocked_type")

	a.Merge(b)
	if a.Get("valid_relation") != 3 || a.Get("blocked_type") != 1 {
		t.Errorf("unexpected merged counts: %v", a.Counts())
	}
	if keys := a.Keys(); len(keys) != 2 || keys[0] != "blocked_type" {
		t.Errorf("unexpected keys: %v", keys)
	}
}
