// Package canon provides the canonical entity index for factgate.
//
// The index holds reference entities that already exist in the curated
// knowledge graph, keyed by normalized name, alias, and wiki identifier.
// It is loaded once at startup and read-only afterward, so lookups are
// safe to share across validation workers.
package canon

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Entity type tags used throughout the pipeline.
const (
	TypePlayer       = "PLAYER"
	TypeCoach        = "COACH"
	TypeClub         = "CLUB"
	TypeCompetition  = "COMPETITION"
	TypeStadium      = "STADIUM"
	TypeNationalTeam = "NATIONAL_TEAM"
	TypeProvince     = "PROVINCE"
)

// clubPrefixRE strips common club designators so "CLB Hà Nội" and
// "Hà Nội" index to the same record.
var clubPrefixRE = regexp.MustCompile(`^(fc|clb|câu lạc bộ)\s+`)

// nationalTeamPrefix is dropped to index the short form of team names.
const nationalTeamPrefix = "đội tuyển "

// Record is a canonical reference entity. Immutable for the duration of
// a run; owned exclusively by the Index.
type Record struct {
	Name          string
	CanonicalName string
	Type          string
	WikiID        *int64
}

// Index is a per-type, case-insensitive lookup table over canonical
// records. Name collisions keep the first-loaded record; this is an
// accepted approximation, not an error.
type Index struct {
	byType map[string]map[string]*Record
	counts map[string]int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byType: make(map[string]map[string]*Record),
		counts: make(map[string]int),
	}
}

// Load ingests reference records for one entity type. Each record is
// indexed under its primary name, its canonical name, derived short
// forms, and a "wiki:<id>" synthetic key.
func (ix *Index) Load(entityType string, records []Record) {
	table := ix.byType[entityType]
	if table == nil {
		table = make(map[string]*Record)
		ix.byType[entityType] = table
	}

	for i := range records {
		rec := &records[i]
		rec.Type = entityType

		keys := keysFor(entityType, rec)
		added := false
		for _, k := range keys {
			if k == "" {
				continue
			}
			if _, exists := table[k]; exists {
				continue // first-loaded wins
			}
			table[k] = rec
			added = true
		}
		if added {
			ix.counts[entityType]++
		}
	}
}

// keysFor derives every lookup key a record answers to.
func keysFor(entityType string, rec *Record) []string {
	keys := []string{Normalize(rec.Name)}

	if rec.CanonicalName != "" && rec.CanonicalName != rec.Name {
		canonical := Normalize(rec.CanonicalName)
		keys = append(keys, canonical)
		if entityType == TypeNationalTeam {
			keys = append(keys, strings.TrimPrefix(canonical, nationalTeamPrefix))
		}
	}

	if entityType == TypeClub {
		keys = append(keys, clubPrefixRE.ReplaceAllString(Normalize(rec.Name), ""))
	}

	if rec.WikiID != nil {
		keys = append(keys, fmt.Sprintf("wiki:%d", *rec.WikiID))
	}

	return keys
}

// Lookup returns the canonical record matching (text, type), or nil.
// Matching is exact after normalization; no fuzzy fallback.
func (ix *Index) Lookup(text, entityType string) *Record {
	table := ix.byType[entityType]
	if table == nil {
		return nil
	}
	return table[Normalize(text)]
}

// LookupWikiID returns the record registered under the given wiki
// identifier for the type, or nil.
func (ix *Index) LookupWikiID(wikiID int64, entityType string) *Record {
	table := ix.byType[entityType]
	if table == nil {
		return nil
	}
	return table[fmt.Sprintf("wiki:%d", wikiID)]
}

// Len returns the number of distinct records loaded across all types.
func (ix *Index) Len() int {
	total := 0
	for _, n := range ix.counts {
		total += n
	}
	return total
}

// Counts returns per-type loaded record counts, sorted by type name.
func (ix *Index) Counts() []TypeCount {
	out := make([]TypeCount, 0, len(ix.counts))
	for t, n := range ix.counts {
		out = append(out, TypeCount{Type: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// TypeCount pairs an entity type with its loaded record count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Normalize lowercases, trims, and collapses internal whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// LoadCSV reads reference records for one type from a CSV file with a
// header row. Recognized columns: name (or full_name/club_name/
// stadium_name/province), canonical_name, wiki_id (or page_id).
// A missing file is not an error: it contributes zero records.
func (ix *Index) LoadCSV(path, entityType string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("reading header of %s: %w", path, err)
	}

	col := func(names ...string) int {
		for _, want := range names {
			for i, h := range header {
				if strings.EqualFold(strings.TrimSpace(h), want) {
					return i
				}
			}
		}
		return -1
	}

	nameIdx := col("name", "full_name", "club_name", "stadium_name", "province")
	canonIdx := col("canonical_name")
	wikiIdx := col("wiki_id", "page_id")

	if nameIdx < 0 {
		return 0, fmt.Errorf("%s: no recognized name column", path)
	}

	var records []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // one bad row never aborts the load
		}

		field := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		name := field(nameIdx)
		if name == "" {
			continue
		}

		rec := Record{Name: name, CanonicalName: field(canonIdx)}
		if raw := field(wikiIdx); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				rec.WikiID = &id
			}
		}
		records = append(records, rec)
	}

	ix.Load(entityType, records)
	return len(records), nil
}
