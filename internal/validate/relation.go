package validate

// CandidateRelation is an unvalidated fact proposed by upstream
// extraction: two candidate endpoints, a predicate, and provenance.
type CandidateRelation struct {
	Subject    CandidateEntity `json:"subject"`
	Predicate  string          `json:"predicate"`
	Object     CandidateEntity `json:"object"`
	Confidence float64         `json:"confidence"`
	Context    string          `json:"context"`
	Source     string          `json:"source"`
	Pattern    string          `json:"pattern,omitempty"`
}

// ValidatedRelation is a relation whose endpoints both passed entity
// validation. Routed to a partition but never mutated afterward.
type ValidatedRelation struct {
	Subject    ValidatedEntity
	Predicate  string
	Object     ValidatedEntity
	Confidence float64
	Context    string
	Source     string
	Pattern    string
}

// Key returns the deduplication key: subject identity, predicate,
// object identity.
func (r *ValidatedRelation) Key() string {
	return r.Subject.IdentityKey() + "\x00" + r.Predicate + "\x00" + r.Object.IdentityKey()
}

// Relation-level counter keys.
const (
	statRelationInvalidSubject = "relation_invalid_subject"
	statRelationInvalidObject  = "relation_invalid_object"
	statRelationEndpointNew    = "relation_entity_not_exist"
	statRelationLowConfidence  = "relation_low_confidence"
	statRelationValid          = "valid_relation"
)

// RelationOutcome is the result of validating one candidate relation.
type RelationOutcome struct {
	Relation *ValidatedRelation
	Reason   string
}

// Accepted reports whether the relation passed validation.
func (o RelationOutcome) Accepted() bool { return o.Relation != nil }

// RelationValidator validates relation candidates by validating both
// endpoints through an EntityValidator, then applying relation-level
// policy. It shares the entity validator's counters so a run report has
// a single counter map.
type RelationValidator struct {
	cfg      Config
	entities *EntityValidator
}

// NewRelationValidator wires a relation validator over an entity
// validator.
func NewRelationValidator(cfg Config, entities *EntityValidator) *RelationValidator {
	return &RelationValidator{cfg: cfg, entities: entities}
}

// Stats exposes the shared decision counters.
func (v *RelationValidator) Stats() *Stats { return v.entities.stats }

// Validate checks one candidate relation. Both endpoints are validated
// independently; either failing rejects the relation. When the
// configuration requires both endpoints to pre-exist, a new endpoint is
// also a rejection. Finally the relation confidence floor applies.
func (v *RelationValidator) Validate(rel CandidateRelation, sentence string) RelationOutcome {
	context := rel.Context
	if context == "" {
		context = sentence
	}

	reject := func(key string) RelationOutcome {
		v.entities.stats.bump(key)
		return RelationOutcome{Reason: key}
	}

	subject := v.entities.Validate(rel.Subject, context)
	if !subject.Accepted() {
		return reject(statRelationInvalidSubject)
	}

	object := v.entities.Validate(rel.Object, context)
	if !object.Accepted() {
		return reject(statRelationInvalidObject)
	}

	if v.cfg.RequireBothEndpointsExist {
		if subject.Entity.IsNew || object.Entity.IsNew {
			return reject(statRelationEndpointNew)
		}
	}

	// Extraction-rule candidates carry a rule name and are gated by the
	// looser extracted floor; annotator relations use the strict one.
	floor := v.cfg.MinRelationConfidence
	if rel.Pattern != "" {
		floor = v.cfg.MinExtractedConfidence
	}
	if rel.Confidence < floor {
		return reject(statRelationLowConfidence)
	}

	v.entities.stats.bump(statRelationValid)
	return RelationOutcome{
		Relation: &ValidatedRelation{
			Subject:    *subject.Entity,
			Predicate:  rel.Predicate,
			Object:     *object.Entity,
			Confidence: rel.Confidence,
			Context:    truncateContext(context, 200),
			Source:     rel.Source,
			Pattern:    rel.Pattern,
		},
	}
}

// truncateContext caps a context string at max runes.
func truncateContext(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
