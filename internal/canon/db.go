package canon

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// referenceQuery reads every reference entity. The entities table is
// produced by the upstream ingestion jobs; this package only reads it.
const referenceQuery = `
	SELECT type, name, COALESCE(canonical_name, ''), wiki_id
	FROM entities
	ORDER BY rowid
`

// LoadFromDB loads reference records from a SQLite reference database
// into the index. Returns the number of records read. The reference
// database is opened read-only; a missing file contributes zero records.
func (ix *Index) LoadFromDB(ctx context.Context, dbPath string) (int, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return 0, nil
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return 0, fmt.Errorf("opening reference db: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("pinging reference db: %w", err)
	}

	rows, err := db.QueryContext(ctx, referenceQuery)
	if err != nil {
		return 0, fmt.Errorf("querying reference entities: %w", err)
	}
	defer rows.Close()

	byType := make(map[string][]Record)
	total := 0

	for rows.Next() {
		var (
			entityType string
			name       string
			canonical  string
			wikiID     sql.NullInt64
		)
		if err := rows.Scan(&entityType, &name, &canonical, &wikiID); err != nil {
			return total, fmt.Errorf("scanning reference entity: %w", err)
		}

		rec := Record{Name: name, CanonicalName: canonical}
		if wikiID.Valid {
			id := wikiID.Int64
			rec.WikiID = &id
		}
		byType[entityType] = append(byType[entityType], rec)
		total++
	}
	if err := rows.Err(); err != nil {
		return total, fmt.Errorf("iterating reference entities: %w", err)
	}

	for entityType, records := range byType {
		ix.Load(entityType, records)
	}

	return total, nil
}
