package storage

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// purgeChunkSize bounds the number of placeholders in one DELETE.
const purgeChunkSize = 500

// Fetch scheduling

// ShouldFetch reports whether a category or filter key is due for a
// re-fetch: never fetched, or last fetched longer ago than threshold.
func (s *Store) ShouldFetch(key string, threshold time.Duration) (bool, error) {
	var lastFetched time.Time
	err := s.db.QueryRow(
		"SELECT last_fetched FROM fetched_categories WHERE category_key = ?", key,
	).Scan(&lastFetched)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch log %s: %w", key, err)
	}
	return time.Since(lastFetched) > threshold, nil
}

// RecordFetch upserts the fetch-log row for a key.
func (s *Store) RecordFetch(key, displayName string, articleCount int) error {
	_, err := s.db.Exec(
		`INSERT INTO fetched_categories (category_key, display_name, last_fetched, article_count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(category_key) DO UPDATE SET
		   display_name = excluded.display_name,
		   last_fetched = excluded.last_fetched,
		   article_count = excluded.article_count`,
		key, displayName, time.Now().UTC(), articleCount,
	)
	if err != nil {
		return fmt.Errorf("record fetch %s: %w", key, err)
	}
	return nil
}

// GetFetchLog returns the fetch-log entry for a key, or nil if the key
// has never been fetched.
func (s *Store) GetFetchLog(key string) (*FetchLogEntry, error) {
	entry := &FetchLogEntry{Key: key}
	err := s.db.QueryRow(
		"SELECT display_name, last_fetched, article_count FROM fetched_categories WHERE category_key = ?",
		key,
	).Scan(&entry.DisplayName, &entry.LastFetched, &entry.ArticleCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch log %s: %w", key, err)
	}
	return entry, nil
}

// Retention sweep

// PurgeOldUnsaved deletes articles published before the retention
// cutoff that were never saved, along with their tag links and status
// rows, then removes any tags orphaned by the sweep. Saved articles
// are never touched regardless of age: candidates are selected inside
// the delete transaction and each delete re-checks the saved flag, so
// a save landing mid-sweep wins. Safe to run repeatedly.
func (s *Store) PurgeOldUnsaved(retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin purge: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT a.id
		 FROM articles a
		 LEFT JOIN article_status s ON s.article_id = a.id
		 WHERE a.published_date < ? AND (s.is_saved IS NULL OR s.is_saved = 0)`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("select purge candidates: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan purge candidate: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(ids) == 0 {
		return 0, nil
	}

	deleted := 0
	for start := 0; start < len(ids); start += purgeChunkSize {
		end := min(start+purgeChunkSize, len(ids))
		n, err := deletePurgeChunk(tx, ids[start:end])
		if err != nil {
			return 0, err
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}

	if _, err := s.CleanupOrphanTags(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// deletePurgeChunk removes one chunk of candidate IDs, skipping any
// article that became saved after candidate selection. Returns how
// many articles rows went away.
func deletePurgeChunk(tx *sql.Tx, chunk []string) (int, error) {
	const notSaved = "NOT IN (SELECT article_id FROM article_status WHERE is_saved = 1)"

	// Referential order: tag links, then status, then the articles.
	steps := []sq.DeleteBuilder{
		sq.Delete("article_tags").Where(sq.Eq{"article_id": chunk}).Where("article_id " + notSaved),
		sq.Delete("article_status").Where(sq.Eq{"article_id": chunk}).Where("is_saved = 0"),
		sq.Delete("articles").Where(sq.Eq{"id": chunk}).Where("id " + notSaved),
	}
	deleted := 0
	for i, step := range steps {
		query, args, err := step.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build purge delete: %w", err)
		}
		result, err := tx.Exec(query, args...)
		if err != nil {
			return 0, fmt.Errorf("purge delete: %w", err)
		}
		if i == len(steps)-1 {
			n, err := result.RowsAffected()
			if err != nil {
				return 0, fmt.Errorf("purge delete: %w", err)
			}
			deleted = int(n)
		}
	}
	return deleted, nil
}

// Statistics

// GetStats returns the aggregate counts shown by the maintenance CLI.
// TopTags holds the five most-used tags, busiest first.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM articles", &stats.TotalArticles},
		{"SELECT COUNT(*) FROM article_status WHERE is_saved = 1", &stats.SavedArticles},
		{`SELECT COUNT(*) FROM articles a
		  LEFT JOIN article_status s ON s.article_id = a.id
		  WHERE s.is_viewed IS NULL OR s.is_viewed = 0`, &stats.UnreadArticles},
		{"SELECT COUNT(*) FROM tags", &stats.TotalTags},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("get stats: %w", err)
		}
	}

	rows, err := s.db.Query(
		`SELECT t.name, COUNT(at.article_id) AS uses
		 FROM tags t
		 LEFT JOIN article_tags at ON t.id = at.tag_id
		 GROUP BY t.id, t.name
		 ORDER BY uses DESC, t.name
		 LIMIT 5`,
	)
	if err != nil {
		return nil, fmt.Errorf("get top tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan top tag: %w", err)
		}
		stats.TopTags = append(stats.TopTags, tc)
	}
	return stats, rows.Err()
}

// Legacy import

// LegacyImportStats tallies a one-time import from the old text-file
// storage format.
type LegacyImportStats struct {
	SavedImported  int
	ViewedImported int
	Errors         int
}

// ImportLegacyTextFiles imports saved/viewed state from the pre-database
// text files: one article ID per line in the saved file, one entry URL
// per line in the viewed file. Best effort: unknown IDs and malformed
// lines count as errors but never abort the import. Missing files are
// simply skipped.
func (s *Store) ImportLegacyTextFiles(savedPath, viewedPath string) (LegacyImportStats, error) {
	var stats LegacyImportStats

	if lines, ok := readLines(savedPath); ok {
		for _, id := range lines {
			if _, err := s.MarkSaved(id); err != nil {
				stats.Errors++
				continue
			}
			stats.SavedImported++
		}
	}

	if lines, ok := readLines(viewedPath); ok {
		for _, url := range lines {
			// Viewed entries are stored as abstract-page URLs.
			_, id, found := strings.Cut(url, "abs/")
			if !found {
				stats.Errors++
				continue
			}
			if err := s.MarkViewed(id); err != nil {
				stats.Errors++
				continue
			}
			stats.ViewedImported++
		}
	}

	return stats, nil
}

func readLines(path string) ([]string, bool) {
	if path == "" {
		return nil, false
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, true
}
