package sqlkv

import (
	"strings"
	"testing"
)

func TestBuildQueriesUsesDialectPlaceholders(t *testing.T) {
	pg := buildQueries(Postgres)
	if !strings.Contains(pg.put, "VALUES ($1, $2, $3, $4)") || !strings.Contains(pg.get, "record_key = $2") {
		t.Fatalf("unexpected postgres queries: %+v", pg)
	}
	lite := buildQueries(SQLite)
	if strings.Contains(lite.put, "$") || !strings.Contains(lite.del, "collection = ? AND record_key = ?") {
		t.Fatalf("unexpected sqlite queries: %+v", lite)
	}
	for _, q := range []string{pg.put, lite.put} {
		if !strings.Contains(q, "ON CONFLICT (collection, record_key) DO UPDATE") {
			t.Fatalf("put must upsert: %s", q)
		}
	}
}
