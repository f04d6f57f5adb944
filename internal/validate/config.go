// Package validate applies the strict acceptance rules that decide which
// candidate entities and relations may reach the curated knowledge graph.
//
// Rejection is an expected, high-frequency outcome of the rule chain, not
// an error: validators return an Outcome value and aggregate per-rule
// counters instead of logging or failing.
package validate

import "github.com/factgate/factgate/internal/canon"

// Provenance tags describe how the upstream annotator produced a
// candidate, used as a trust signal.
const (
	ProvenanceDictionary = "dictionary"
	ProvenanceModel      = "model"
	ProvenancePattern    = "pattern"
)

// Config holds every validation threshold and rule set for one run.
// Construct once (DefaultConfig, optionally adjusted) and pass by value;
// nothing mutates it afterward.
type Config struct {
	// RequireDomainContext rejects unmatched mentions that show no
	// domain indicator in text or context.
	RequireDomainContext bool

	// Provenance-specific confidence floors. Dictionary matches are
	// trusted more, so their floor is looser than the model/pattern one.
	MinConfidenceDictionary float64
	MinConfidenceModel      float64

	// MinEntityLength is the minimum mention length in runes.
	MinEntityLength int

	// OnlyDictionaryForNew restricts new-entity creation to
	// dictionary-sourced candidates.
	OnlyDictionaryForNew bool

	// RequireBothEndpointsExist rejects relations with any new endpoint.
	RequireBothEndpointsExist bool

	// MinRelationConfidence is the floor for annotator-tagged relation
	// candidates. MinExtractedConfidence is the looser floor for
	// candidates produced by our own extraction rules, whose fixed
	// per-rule confidences are calibrated against it.
	MinRelationConfidence  float64
	MinExtractedConfidence float64

	// AllowedTypes and BlockedTypes gate the claimed entity type.
	// A type must be absent from BlockedTypes and present in
	// AllowedTypes to pass.
	AllowedTypes map[string]bool
	BlockedTypes map[string]bool

	// TextBlacklist rejects mentions containing any of these substrings
	// (organization/media/institution noise).
	TextBlacklist []string
}

// DefaultConfig returns the strict production rule set.
func DefaultConfig() Config {
	return Config{
		RequireDomainContext:      true,
		MinConfidenceDictionary:   0.95,
		MinConfidenceModel:        1.0, // effectively disables new entities from model output
		MinEntityLength:           4,
		OnlyDictionaryForNew:      true,
		RequireBothEndpointsExist: true,
		MinRelationConfidence:     0.85,
		MinExtractedConfidence:    0.70,
		AllowedTypes: map[string]bool{
			canon.TypePlayer:       true,
			canon.TypeCoach:        true,
			canon.TypeClub:         true,
			canon.TypeCompetition:  true,
			canon.TypeStadium:      true,
			canon.TypeNationalTeam: true,
		},
		BlockedTypes: map[string]bool{
			"DATE":         true, // no node needed
			"POSITION":     true, // property of a player, not a node
			"PROVINCE":     true, // reference data is already complete
			"EVENT":        true,
			"ORGANIZATION": true,
			"UNKNOWN":      true,
		},
		TextBlacklist: []string{
			"vff", "fifa", "afc", "aff", // governing bodies
			"báo", "tạp chí", "newspaper", // media
			"học viện", "academy",
			"công ty", "company",
			"liên đoàn", "federation",
			"hiệp hội", "association",
		},
	}
}

// Snapshot is the JSON-friendly form of a Config embedded in run reports.
type Snapshot struct {
	RequireDomainContext      bool    `json:"require_domain_context"`
	MinConfidenceDictionary   float64 `json:"min_confidence_dictionary"`
	MinConfidenceModel        float64 `json:"min_confidence_model"`
	MinEntityLength           int     `json:"min_entity_length"`
	OnlyDictionaryForNew      bool    `json:"only_dictionary_for_new"`
	RequireBothEndpointsExist bool    `json:"require_both_endpoints_exist"`
	MinRelationConfidence     float64 `json:"min_relation_confidence"`
	MinExtractedConfidence    float64 `json:"min_extracted_confidence"`
}

// Snapshot returns the reportable subset of the configuration.
func (c Config) Snapshot() Snapshot {
	return Snapshot{
		RequireDomainContext:      c.RequireDomainContext,
		MinConfidenceDictionary:   c.MinConfidenceDictionary,
		MinConfidenceModel:        c.MinConfidenceModel,
		MinEntityLength:           c.MinEntityLength,
		OnlyDictionaryForNew:      c.OnlyDictionaryForNew,
		RequireBothEndpointsExist: c.RequireBothEndpointsExist,
		MinRelationConfidence:     c.MinRelationConfidence,
		MinExtractedConfidence:    c.MinExtractedConfidence,
	}
}
