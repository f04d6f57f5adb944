// Package graph imports safe relations into the Neo4j knowledge graph.
// Endpoints are matched by wiki id, never created: import only connects
// nodes that already exist.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/factgate/factgate/internal/validate"
)

// nodeLabels maps entity types to graph labels.
var nodeLabels = map[string]string{
	"PLAYER":        "Player",
	"COACH":         "Coach",
	"CLUB":          "Club",
	"COMPETITION":   "Competition",
	"STADIUM":       "Stadium",
	"NATIONAL_TEAM": "NationalTeam",
	"PROVINCE":      "Province",
}

// relationTypes is the closed set of importable predicates. Labels and
// relationship types are interpolated into Cypher text, so anything
// outside these maps is refused rather than quoted.
var relationTypes = map[string]string{
	"PLAYED_FOR":          "PLAYED_FOR",
	"PLAYED_FOR_NATIONAL": "PLAYED_FOR_NATIONAL",
	"COMPETED_IN":         "COMPETED_IN",
	"COMPETES_IN":         "COMPETES_IN",
	"COACHED":             "COACHED",
	"COACHED_NATIONAL":    "COACHED_NATIONAL",
	"DEFEATED":            "DEFEATED",
	"TRANSFERRED_TO":      "TRANSFERRED_TO",
}

// contextPropertyLimit caps the context stored on a relationship.
const contextPropertyLimit = 500

// ImportStats counts the outcome of one import pass.
type ImportStats struct {
	Total          int `json:"total"`
	Created        int `json:"created"`
	SkippedExists  int `json:"skipped_exists"`
	SkippedNoMatch int `json:"skipped_no_match"`
	Errors         int `json:"errors"`
}

// Importer writes validated safe relations into Neo4j. DryRun counts
// what would be created without touching the graph.
type Importer struct {
	driver neo4j.DriverWithContext
	DryRun bool
}

// NewImporter wraps an open driver. The caller owns the driver's
// lifecycle.
func NewImporter(driver neo4j.DriverWithContext) *Importer {
	return &Importer{driver: driver}
}

// NodeLabel resolves an entity type to its graph label; unknown types
// fall back to the generic Entity label.
func NodeLabel(entityType string) string {
	if label, ok := nodeLabels[entityType]; ok {
		return label
	}
	return "Entity"
}

// RelationType resolves a predicate to its graph relationship type, or
// false when the predicate is not importable.
func RelationType(predicate string) (string, bool) {
	t, ok := relationTypes[predicate]
	return t, ok
}

// existsQuery builds the Cypher that checks for a prior identical edge.
func existsQuery(subjLabel, relType, objLabel string) string {
	return fmt.Sprintf(
		"MATCH (s:%s {wiki_id: $subj_wiki_id})-[r:%s]->(o:%s {wiki_id: $obj_wiki_id}) RETURN count(r) AS cnt",
		subjLabel, relType, objLabel,
	)
}

// createQuery builds the Cypher that connects two existing nodes.
func createQuery(subjLabel, relType, objLabel string) string {
	return fmt.Sprintf(
		`MATCH (s:%s {wiki_id: $subj_wiki_id})
MATCH (o:%s {wiki_id: $obj_wiki_id})
CREATE (s)-[r:%s {
  confidence: $confidence,
  context: $context,
  pattern: $pattern,
  source: 'enrichment',
  created_at: datetime()
}]->(o)
RETURN r`,
		subjLabel, objLabel, relType,
	)
}

// Import writes one batch of safe relations. Relations without both wiki
// ids or with an unknown predicate are counted as skipped; a Cypher
// failure on one relation is counted and does not abort the batch.
func (im *Importer) Import(ctx context.Context, relations []*validate.ValidatedRelation) (*ImportStats, error) {
	stats := &ImportStats{}

	var session neo4j.SessionWithContext
	if !im.DryRun {
		session = im.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
	}

	for _, rel := range relations {
		stats.Total++

		subjID := endpointWikiID(rel.Subject)
		objID := endpointWikiID(rel.Object)
		if subjID == nil || objID == nil {
			stats.SkippedNoMatch++
			continue
		}
		relType, ok := RelationType(rel.Predicate)
		if !ok {
			stats.SkippedNoMatch++
			continue
		}

		if im.DryRun {
			stats.Created++
			continue
		}

		subjLabel := NodeLabel(rel.Subject.Type)
		objLabel := NodeLabel(rel.Object.Type)

		exists, err := im.relationExists(ctx, session, subjLabel, relType, objLabel, *subjID, *objID)
		if err != nil {
			stats.Errors++
			continue
		}
		if exists {
			stats.SkippedExists++
			continue
		}

		if err := im.createRelation(ctx, session, subjLabel, relType, objLabel, rel, *subjID, *objID); err != nil {
			stats.Errors++
			continue
		}
		stats.Created++
	}
	return stats, nil
}

func (im *Importer) relationExists(ctx context.Context, session neo4j.SessionWithContext, subjLabel, relType, objLabel string, subjID, objID int64) (bool, error) {
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, existsQuery(subjLabel, relType, objLabel), map[string]any{
			"subj_wiki_id": subjID,
			"obj_wiki_id":  objID,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		cnt, _ := record.Get("cnt")
		return cnt, nil
	})
	if err != nil {
		return false, fmt.Errorf("graph: check relation: %w", err)
	}
	cnt, ok := result.(int64)
	return ok && cnt > 0, nil
}

func (im *Importer) createRelation(ctx context.Context, session neo4j.SessionWithContext, subjLabel, relType, objLabel string, rel *validate.ValidatedRelation, subjID, objID int64) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, createQuery(subjLabel, relType, objLabel), map[string]any{
			"subj_wiki_id": subjID,
			"obj_wiki_id":  objID,
			"confidence":   rel.Confidence,
			"context":      truncate(rel.Context, contextPropertyLimit),
			"pattern":      rel.Pattern,
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: create relation: %w", err)
	}
	return nil
}

// endpointWikiID prefers the candidate's carried id, then the matched
// canonical record's.
func endpointWikiID(e validate.ValidatedEntity) *int64 {
	if e.WikiID != nil {
		return e.WikiID
	}
	if e.Matched != nil {
		return e.Matched.WikiID
	}
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
