package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"

	"github.com/factgate/factgate/internal/canon"
	"github.com/factgate/factgate/internal/relevance"
)

// CandidateEntity is an unvalidated mention produced by the upstream
// annotator. Read-only to this package.
type CandidateEntity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	WikiID     *int64  `json:"wiki_id"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// ValidatedEntity is a mention that passed the full rule chain. Never
// mutated after creation.
type ValidatedEntity struct {
	Text          string
	Type          string
	WikiID        *int64
	Confidence    float64
	Source        string
	Matched       *canon.Record
	IsNew         bool
	DomainRelated bool
	Notes         []string
}

// IdentityKey returns the stable identifier used for relation
// deduplication: the wiki id when one is known, otherwise the
// normalized (text, type) pair.
func (e *ValidatedEntity) IdentityKey() string {
	if e.WikiID != nil {
		return fmt.Sprintf("wiki:%d", *e.WikiID)
	}
	if e.Matched != nil && e.Matched.WikiID != nil {
		return fmt.Sprintf("wiki:%d", *e.Matched.WikiID)
	}
	return canon.Normalize(e.Text) + "|" + e.Type
}

// Reason identifies which rule rejected a candidate. Reason values
// double as counter keys in the run report.
type Reason string

const (
	ReasonBlockedType        Reason = "blocked_type"
	ReasonUnknownType        Reason = "unknown_type"
	ReasonTooShort           Reason = "too_short"
	ReasonLowConfidence      Reason = "low_confidence"
	ReasonLowConfidenceModel Reason = "low_confidence_model"
	ReasonBlacklisted        Reason = "blacklisted"
	ReasonForeignEntity      Reason = "foreign_entity"
	ReasonNotDomainRelated   Reason = "not_domain_related"
	ReasonNewNotDictionary   Reason = "new_not_dictionary"
)

// Accept-path counter keys.
const (
	statNewCandidate    = "new_candidate"
	statMatchedExisting = "matched_existing"
)

// Outcome is the result of validating one candidate entity: either an
// accepted ValidatedEntity or a rejection Reason.
type Outcome struct {
	Entity *ValidatedEntity
	Reason Reason
}

// Accepted reports whether the candidate passed the rule chain.
func (o Outcome) Accepted() bool { return o.Entity != nil }

// EntityValidator applies the ordered rule chain to candidate entities.
// Outcomes are memoized per (text, type, source, confidence, context
// relevance), since relation validation re-checks endpoint mentions that
// repeat across many sentences.
type EntityValidator struct {
	cfg        Config
	index      *canon.Index
	classifier *relevance.Classifier
	memo       *gocache.Cache
	stats      *Stats
}

// NewEntityValidator wires a validator over a loaded canonical index.
func NewEntityValidator(cfg Config, index *canon.Index, classifier *relevance.Classifier) *EntityValidator {
	return &EntityValidator{
		cfg:        cfg,
		index:      index,
		classifier: classifier,
		memo:       gocache.New(gocache.NoExpiration, 0),
		stats:      NewStats(),
	}
}

// Stats exposes the validator's decision counters.
func (v *EntityValidator) Stats() *Stats { return v.stats }

// memoizedOutcome pairs an outcome with the counter key its decision
// bumps, so cache hits still count.
type memoizedOutcome struct {
	outcome Outcome
	statKey string
}

// Validate runs the rule chain on one candidate, short-circuiting on the
// first failing rule. The rules run in a fixed order: the cheap
// type/length/confidence checks first, the canonical-lookup-dependent
// checks last.
func (v *EntityValidator) Validate(cand CandidateEntity, context string) Outcome {
	ctxRelated := v.classifier.IsDomainRelated("", context)

	// The key keeps the raw trimmed text: the blacklist and indicator
	// checks are whitespace-sensitive, so variants that normalization
	// would merge can decide differently.
	key := strings.Join([]string{
		strings.TrimSpace(cand.Text),
		cand.Type,
		cand.Source,
		fmt.Sprintf("%.4f", cand.Confidence),
		fmt.Sprintf("%t", ctxRelated),
	}, "\x00")

	if hit, ok := v.memo.Get(key); ok {
		m := hit.(memoizedOutcome)
		v.stats.bump(m.statKey)
		return m.outcome
	}

	m := v.validate(cand, context)
	v.memo.Set(key, m, gocache.NoExpiration)
	v.stats.bump(m.statKey)
	return m.outcome
}

func (v *EntityValidator) validate(cand CandidateEntity, context string) memoizedOutcome {
	text := strings.TrimSpace(cand.Text)

	reject := func(r Reason) memoizedOutcome {
		return memoizedOutcome{outcome: Outcome{Reason: r}, statKey: string(r)}
	}

	// Rule 1: blocked type.
	if v.cfg.BlockedTypes[cand.Type] {
		return reject(ReasonBlockedType)
	}

	// Rule 2: type must be explicitly allowed.
	if !v.cfg.AllowedTypes[cand.Type] {
		return reject(ReasonUnknownType)
	}

	// Rule 3: minimum length.
	if utf8.RuneCountInString(text) < v.cfg.MinEntityLength {
		return reject(ReasonTooShort)
	}

	// Rule 4: provenance-specific confidence floor.
	if cand.Source == ProvenanceDictionary {
		if cand.Confidence < v.cfg.MinConfidenceDictionary {
			return reject(ReasonLowConfidence)
		}
	} else {
		if cand.Confidence < v.cfg.MinConfidenceModel {
			return reject(ReasonLowConfidenceModel)
		}
	}

	// Rule 5: text blacklist.
	textLower := strings.ToLower(text)
	for _, term := range v.cfg.TextBlacklist {
		if strings.Contains(textLower, term) {
			return reject(ReasonBlacklisted)
		}
	}

	// Rule 6: foreign entities are rejected unconditionally, even when a
	// canonical match exists. Asymmetric with rule 7 on purpose: the
	// shipped behavior is reproduced as-is, pending product review.
	if v.classifier.IsOutOfDomain(text) {
		return reject(ReasonForeignEntity)
	}

	// Rule 7: domain relatedness. Unmatched mentions must show a domain
	// indicator; an already-known entity is trusted regardless.
	domainRelated := v.classifier.IsDomainRelated(text, context)
	if v.cfg.RequireDomainContext && !domainRelated {
		if v.index.Lookup(text, cand.Type) == nil {
			return reject(ReasonNotDomainRelated)
		}
	}

	// Rule 8: canonical lookup decides new-vs-existing.
	matched := v.index.Lookup(text, cand.Type)
	isNew := matched == nil

	// Rule 9: new entities are only accepted from the dictionary source.
	if isNew && v.cfg.OnlyDictionaryForNew && cand.Source != ProvenanceDictionary {
		return reject(ReasonNewNotDictionary)
	}

	// Rule 10: accept.
	var notes []string
	statKey := statMatchedExisting
	if isNew {
		notes = append(notes, "NEW: requires human review")
		statKey = statNewCandidate
	} else {
		notes = append(notes, fmt.Sprintf("EXISTING: matched %s", matched.Name))
	}

	entity := &ValidatedEntity{
		Text:          text,
		Type:          cand.Type,
		WikiID:        cand.WikiID,
		Confidence:    cand.Confidence,
		Source:        cand.Source,
		Matched:       matched,
		IsNew:         isNew,
		DomainRelated: domainRelated,
		Notes:         notes,
	}
	return memoizedOutcome{outcome: Outcome{Entity: entity}, statKey: statKey}
}
