package pipeline

import "github.com/factgate/factgate/internal/validate"

// SentenceRecord is one line of annotator output: a sentence plus its
// raw entity and relation candidates. Zero entities or relations is
// normal.
type SentenceRecord struct {
	Sentence  string                       `json:"sentence"`
	PageTitle string                       `json:"page_title"`
	Entities  []validate.CandidateEntity   `json:"entities"`
	Relations []validate.CandidateRelation `json:"relations"`
}
