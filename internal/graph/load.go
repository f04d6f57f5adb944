package graph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/factgate/factgate/internal/validate"
)

// fileEndpoint mirrors one endpoint of the safe-relations artifact.
type fileEndpoint struct {
	Text        string `json:"text"`
	Type        string `json:"type"`
	WikiID      *int64 `json:"wiki_id"`
	MatchedName string `json:"matched_name"`
}

// fileRelation mirrors one line of the safe-relations artifact.
type fileRelation struct {
	Subject    fileEndpoint `json:"subject"`
	Predicate  string       `json:"predicate"`
	Object     fileEndpoint `json:"object"`
	Confidence float64      `json:"confidence"`
	Context    string       `json:"context"`
	Source     string       `json:"source"`
	Pattern    string       `json:"pattern"`
}

// LoadSafeRelations reads an exported safe-relations file back into
// validated relations for import. Malformed lines are skipped and
// counted into skipped.
func LoadSafeRelations(path string) (relations []*validate.ValidatedRelation, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("graph: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var fr fileRelation
		if err := json.Unmarshal([]byte(line), &fr); err != nil {
			skipped++
			continue
		}
		relations = append(relations, &validate.ValidatedRelation{
			Subject:    validate.ValidatedEntity{Text: fr.Subject.Text, Type: fr.Subject.Type, WikiID: fr.Subject.WikiID},
			Predicate:  fr.Predicate,
			Object:     validate.ValidatedEntity{Text: fr.Object.Text, Type: fr.Object.Type, WikiID: fr.Object.WikiID},
			Confidence: fr.Confidence,
			Context:    fr.Context,
			Source:     fr.Source,
			Pattern:    fr.Pattern,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("graph: read %s: %w", path, err)
	}
	return relations, skipped, nil
}
