// Package review consumes human decisions on the review-entities queue
// and turns approved candidates into importable entities.
package review

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Decision is one reviewed line of the review-entities artifact: the
// exported candidate plus the fields the reviewer filled in.
type Decision struct {
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Confidence    float64  `json:"confidence"`
	Source        string   `json:"source"`
	DomainRelated bool     `json:"domain_related"`
	Notes         []string `json:"notes"`

	Approved      *bool   `json:"approved"`
	CorrectedType *string `json:"corrected_type"`
	CorrectedText *string `json:"corrected_text"`
	RejectReason  *string `json:"reject_reason"`
}

// ApprovedEntity is a reviewer-approved candidate with corrections
// applied, ready for graph import.
type ApprovedEntity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Summary counts the outcome of applying one reviewed file.
type Summary struct {
	Total     int `json:"total"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Pending   int `json:"pending"`
	Corrected int `json:"corrected"`
	Malformed int `json:"malformed"`
}

// Load reads a reviewed entities file. Malformed lines are counted in
// the summary and skipped.
func Load(path string) ([]Decision, *Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("review: open %s: %w", path, err)
	}
	defer f.Close()

	summary := &Summary{}
	var decisions []Decision

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var d Decision
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			summary.Malformed++
			continue
		}
		decisions = append(decisions, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("review: read %s: %w", path, err)
	}
	return decisions, summary, nil
}

// Apply filters decisions down to approved entities, applying any
// corrected text or type. Unreviewed lines (approved still null) stay
// pending and are not imported.
func Apply(decisions []Decision, summary *Summary) []ApprovedEntity {
	if summary == nil {
		summary = &Summary{}
	}

	var approved []ApprovedEntity
	for _, d := range decisions {
		summary.Total++
		switch {
		case d.Approved == nil:
			summary.Pending++
		case !*d.Approved:
			summary.Rejected++
		default:
			ent := ApprovedEntity{
				Text:       d.Text,
				Type:       d.Type,
				Confidence: d.Confidence,
				Source:     d.Source,
			}
			corrected := false
			if d.CorrectedText != nil && *d.CorrectedText != "" {
				ent.Text = *d.CorrectedText
				corrected = true
			}
			if d.CorrectedType != nil && *d.CorrectedType != "" {
				ent.Type = *d.CorrectedType
				corrected = true
			}
			if corrected {
				summary.Corrected++
			}
			summary.Approved++
			approved = append(approved, ent)
		}
	}
	return approved
}
