// Package extract proposes relation candidates from sentences whose
// entities already resolved against the canonical index. Working only
// over confirmed entities is the precision lever: co-occurrence over raw
// annotator output would be far noisier.
package extract

import (
	"regexp"
	"strings"

	"github.com/factgate/factgate/internal/canon"
	"github.com/factgate/factgate/internal/validate"
)

// coOccurrenceRule emits a relation for every (subject-type, object-type)
// entity pair in a sentence, provided the sentence carries at least one
// of the rule's keywords. Confidence is a fixed calibrated constant per
// rule, not a measured probability.
type coOccurrenceRule struct {
	Name        string
	SubjectType string
	Predicate   string
	ObjectType  string
	Keywords    []string
	Confidence  float64
}

func defaultCoOccurrenceRules() []coOccurrenceRule {
	return []coOccurrenceRule{
		{
			Name:        "co_occurrence_player_club",
			SubjectType: canon.TypePlayer,
			Predicate:   "PLAYED_FOR",
			ObjectType:  canon.TypeClub,
			Keywords:    []string{"thi đấu", "chơi cho", "khoác áo", "cầu thủ", "gia nhập"},
			Confidence:  0.75,
		},
		{
			Name:        "co_occurrence_player_national",
			SubjectType: canon.TypePlayer,
			Predicate:   "PLAYED_FOR_NATIONAL",
			ObjectType:  canon.TypeNationalTeam,
			Keywords:    []string{"đội tuyển", "quốc gia", "khoác áo", "tuyển"},
			Confidence:  0.80,
		},
		{
			Name:        "co_occurrence_player_competition",
			SubjectType: canon.TypePlayer,
			Predicate:   "COMPETED_IN",
			ObjectType:  canon.TypeCompetition,
			Keywords:    []string{"vô địch", "tham gia", "thi đấu", "giải", "cup"},
			Confidence:  0.70,
		},
		{
			Name:        "co_occurrence_club_competition",
			SubjectType: canon.TypeClub,
			Predicate:   "COMPETES_IN",
			ObjectType:  canon.TypeCompetition,
			Keywords:    []string{"tham gia", "thi đấu", "giải", "vô địch"},
			Confidence:  0.70,
		},
		{
			Name:        "co_occurrence_coach_club",
			SubjectType: canon.TypeCoach,
			Predicate:   "COACHED",
			ObjectType:  canon.TypeClub,
			Keywords:    []string{"huấn luyện", "dẫn dắt", "hlv", "huấn luyện viên"},
			Confidence:  0.75,
		},
	}
}

// MatchedEntity is a sentence mention confirmed against the canonical
// index, carrying both the original candidate and its matched record.
type MatchedEntity struct {
	Candidate validate.CandidateEntity
	Record    *canon.Record
}

// Extractor proposes relation candidates from matched entities using
// explicit surface-form rules and co-occurrence heuristics.
type Extractor struct {
	index *canon.Index
	rules []PatternRule
	co    []coOccurrenceRule
	stats *validate.Stats
}

// NewExtractor wires an extractor over a loaded canonical index. Rule
// hits are counted into stats under the rule name.
func NewExtractor(index *canon.Index, stats *validate.Stats) *Extractor {
	return &Extractor{
		index: index,
		rules: DefaultPatternRules(),
		co:    defaultCoOccurrenceRules(),
		stats: stats,
	}
}

// MatchEntities filters a sentence's candidate entities down to those
// the canonical index recognizes, attaching the matched record and its
// wiki id when the candidate carried none.
func (x *Extractor) MatchEntities(entities []validate.CandidateEntity) []MatchedEntity {
	var matched []MatchedEntity
	for _, cand := range entities {
		rec := x.index.Lookup(cand.Text, cand.Type)
		if rec == nil {
			continue
		}
		if cand.WikiID == nil {
			cand.WikiID = rec.WikiID
		}
		matched = append(matched, MatchedEntity{Candidate: cand, Record: rec})
	}
	return matched
}

// Extract applies both strategies to one sentence. It needs at least two
// matched entities to propose anything; candidates from different rules
// may duplicate and are deduplicated downstream at export.
func (x *Extractor) Extract(matched []MatchedEntity, sentence string) []validate.CandidateRelation {
	if len(matched) < 2 {
		return nil
	}

	byType := make(map[string][]MatchedEntity)
	for _, m := range matched {
		byType[m.Candidate.Type] = append(byType[m.Candidate.Type], m)
	}

	var out []validate.CandidateRelation
	out = append(out, x.patternRelations(byType, sentence)...)
	out = append(out, x.coOccurrenceRelations(byType, sentence)...)
	return out
}

func (x *Extractor) patternRelations(byType map[string][]MatchedEntity, sentence string) []validate.CandidateRelation {
	var out []validate.CandidateRelation
	for _, rule := range x.rules {
		groups := namedGroups(rule.Regex, sentence)
		if groups == nil {
			continue
		}

		subjects := entitiesForRole(byType[rule.SubjectType], groups[rule.SubjectGroup])
		objects := entitiesForRole(byType[rule.ObjectType], groups[rule.ObjectGroup])

		for _, s := range subjects {
			for _, o := range objects {
				if sameMention(s, o) {
					continue
				}
				out = append(out, x.relation(s, o, rule.Predicate, patternConfidence, rule.Name, sentence))
			}
		}
	}
	return out
}

func (x *Extractor) coOccurrenceRelations(byType map[string][]MatchedEntity, sentence string) []validate.CandidateRelation {
	lower := strings.ToLower(sentence)

	var out []validate.CandidateRelation
	for _, rule := range x.co {
		subjects := byType[rule.SubjectType]
		objects := byType[rule.ObjectType]
		if len(subjects) == 0 || len(objects) == 0 {
			continue
		}
		if !containsAny(lower, rule.Keywords) {
			continue
		}
		for _, s := range subjects {
			for _, o := range objects {
				if sameMention(s, o) {
					continue
				}
				out = append(out, x.relation(s, o, rule.Predicate, rule.Confidence, rule.Name, sentence))
			}
		}
	}
	return out
}

func (x *Extractor) relation(s, o MatchedEntity, predicate string, confidence float64, pattern, sentence string) validate.CandidateRelation {
	x.stats.Bump(pattern)
	return validate.CandidateRelation{
		Subject:    s.Candidate,
		Predicate:  predicate,
		Object:     o.Candidate,
		Confidence: confidence,
		Context:    sentence,
		Source:     validate.ProvenancePattern,
		Pattern:    pattern,
	}
}

// namedGroups runs the regex on the sentence and returns a map of named
// capture groups to their first-match text, or nil when the regex does
// not match.
func namedGroups(re *regexp.Regexp, sentence string) map[string]string {
	m := re.FindStringSubmatch(sentence)
	if m == nil {
		return nil
	}
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	return groups
}

// entitiesForRole resolves a rule role to concrete matched entities.
// When the rule captured text for the role, only entities whose
// normalized name overlaps the captured span qualify; when it did not,
// every matched entity of the role's type qualifies.
func entitiesForRole(candidates []MatchedEntity, captured string) []MatchedEntity {
	if captured == "" {
		return candidates
	}
	capturedNorm := canon.Normalize(captured)
	var out []MatchedEntity
	for _, m := range candidates {
		name := canon.Normalize(m.Candidate.Text)
		if strings.Contains(capturedNorm, name) || strings.Contains(name, capturedNorm) {
			out = append(out, m)
		}
	}
	return out
}

func sameMention(a, b MatchedEntity) bool {
	return a.Candidate.Type == b.Candidate.Type &&
		canon.Normalize(a.Candidate.Text) == canon.Normalize(b.Candidate.Text)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
