package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/factgate/factgate/internal/canon"
	"github.com/factgate/factgate/internal/validate"
)

// ExportPaths names the four output artifacts of a run.
type ExportPaths struct {
	SafeRelations   string
	ReviewEntities  string
	ReviewRelations string
	Report          string
}

// Report is the run summary written alongside the partitions: which
// configuration ran, what every rule decided, and how large each
// partition came out.
type Report struct {
	RunID           string            `json:"run_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Config          validate.Snapshot `json:"config"`
	Counters        map[string]int    `json:"counters"`
	SafeRelations   int               `json:"safe_relations"`
	ReviewEntities  int               `json:"review_entities"`
	ReviewRelations int               `json:"review_relations"`
	Outputs         map[string]string `json:"outputs"`
}

// safeEndpoint is the exported form of a safe-relation endpoint. Both
// endpoints matched a canonical record, so matched_name is always set.
type safeEndpoint struct {
	Text        string `json:"text"`
	Type        string `json:"type"`
	WikiID      *int64 `json:"wiki_id"`
	MatchedName string `json:"matched_name"`
}

type safeRelationLine struct {
	Subject    safeEndpoint `json:"subject"`
	Predicate  string       `json:"predicate"`
	Object     safeEndpoint `json:"object"`
	Confidence float64      `json:"confidence"`
	Context    string       `json:"context"`
	Source     string       `json:"source"`
	Pattern    string       `json:"pattern,omitempty"`
}

// reviewDecision holds the human-review fields. This pipeline always
// writes them null; the review tool fills them in.
type reviewDecision struct {
	Approved      *bool   `json:"approved"`
	CorrectedType *string `json:"corrected_type"`
	CorrectedText *string `json:"corrected_text"`
	RejectReason  *string `json:"reject_reason"`
}

type reviewEntityLine struct {
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Confidence    float64  `json:"confidence"`
	Source        string   `json:"source"`
	DomainRelated bool     `json:"domain_related"`
	Notes         []string `json:"notes"`
	reviewDecision
}

type reviewEndpoint struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type reviewRelationLine struct {
	Subject    reviewEndpoint `json:"subject"`
	Predicate  string         `json:"predicate"`
	Object     reviewEndpoint `json:"object"`
	Confidence float64        `json:"confidence"`
	Context    string         `json:"context"`
	Source     string         `json:"source"`
	reviewDecision
}

// DedupEntities keeps the first entity per (normalized text, type).
func DedupEntities(entities []*validate.ValidatedEntity) []*validate.ValidatedEntity {
	seen := make(map[string]bool, len(entities))
	out := make([]*validate.ValidatedEntity, 0, len(entities))
	for _, e := range entities {
		key := canon.Normalize(e.Text) + "|" + e.Type
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// DedupRelations keeps the first relation per (subject id, predicate,
// object id).
func DedupRelations(relations []*validate.ValidatedRelation) []*validate.ValidatedRelation {
	seen := make(map[string]bool, len(relations))
	out := make([]*validate.ValidatedRelation, 0, len(relations))
	for _, r := range relations {
		key := r.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// Export deduplicates the result partitions, writes the three JSONL
// artifacts plus the run report, and returns the report. Deduplication
// happens here and only here: the validation pass never tracks
// previously seen keys.
func Export(res *Result, cfg validate.Config, paths ExportPaths) (*Report, error) {
	safe := DedupRelations(res.SafeRelations)
	reviewEnts := DedupEntities(res.ReviewEntities)
	reviewRels := DedupRelations(res.ReviewRelations)

	if err := writeJSONL(paths.SafeRelations, len(safe), func(i int) any {
		return toSafeLine(safe[i])
	}); err != nil {
		return nil, err
	}
	if err := writeJSONL(paths.ReviewEntities, len(reviewEnts), func(i int) any {
		e := reviewEnts[i]
		return reviewEntityLine{
			Text:          e.Text,
			Type:          e.Type,
			Confidence:    e.Confidence,
			Source:        e.Source,
			DomainRelated: e.DomainRelated,
			Notes:         e.Notes,
		}
	}); err != nil {
		return nil, err
	}
	if err := writeJSONL(paths.ReviewRelations, len(reviewRels), func(i int) any {
		r := reviewRels[i]
		return reviewRelationLine{
			Subject:    reviewEndpoint{Text: r.Subject.Text, Type: r.Subject.Type},
			Predicate:  r.Predicate,
			Object:     reviewEndpoint{Text: r.Object.Text, Type: r.Object.Type},
			Confidence: r.Confidence,
			Context:    r.Context,
			Source:     r.Source,
		}
	}); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:           uuid.NewString(),
		GeneratedAt:     time.Now().UTC(),
		Config:          cfg.Snapshot(),
		Counters:        res.Stats.Counts(),
		SafeRelations:   len(safe),
		ReviewEntities:  len(reviewEnts),
		ReviewRelations: len(reviewRels),
		Outputs: map[string]string{
			"safe_relations":   paths.SafeRelations,
			"review_entities":  paths.ReviewEntities,
			"review_relations": paths.ReviewRelations,
		},
	}
	if err := writeReport(paths.Report, report); err != nil {
		return nil, err
	}
	return report, nil
}

func toSafeLine(r *validate.ValidatedRelation) safeRelationLine {
	return safeRelationLine{
		Subject:    toSafeEndpoint(r.Subject),
		Predicate:  r.Predicate,
		Object:     toSafeEndpoint(r.Object),
		Confidence: r.Confidence,
		Context:    r.Context,
		Source:     r.Source,
		Pattern:    r.Pattern,
	}
}

func toSafeEndpoint(e validate.ValidatedEntity) safeEndpoint {
	ep := safeEndpoint{Text: e.Text, Type: e.Type, WikiID: e.WikiID}
	if e.Matched != nil {
		ep.MatchedName = e.Matched.Name
		if ep.WikiID == nil {
			ep.WikiID = e.Matched.WikiID
		}
	}
	return ep
}

func writeJSONL(path string, n int, line func(int) any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	for i := 0; i < n; i++ {
		if err := enc.Encode(line(i)); err != nil {
			f.Close()
			return fmt.Errorf("export: write %s: %w", path, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}

func writeReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("export: write report: %w", err)
	}
	return nil
}
