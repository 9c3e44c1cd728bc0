package storage

import (
	"database/sql"
	"fmt"
	"time"
)

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// MarkViewed marks an article as viewed, recording the first view time.
// Idempotent: a second call leaves viewed_at untouched.
func (s *Store) MarkViewed(articleID string) error {
	if err := s.requireArticle(articleID); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO article_status (article_id, is_saved, is_viewed, viewed_at)
		 VALUES (?, 0, 1, ?)
		 ON CONFLICT(article_id) DO UPDATE SET
		   is_viewed = 1,
		   viewed_at = excluded.viewed_at
		 WHERE article_status.is_viewed = 0`,
		articleID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark viewed %s: %w", articleID, err)
	}
	return nil
}

// MarkSaved marks an article as saved. Returns whether the flag
// actually flipped.
func (s *Store) MarkSaved(articleID string) (bool, error) {
	if err := s.requireArticle(articleID); err != nil {
		return false, err
	}
	result, err := promoteToSaved(s.db, articleID)
	if err != nil {
		return false, fmt.Errorf("mark saved %s: %w", articleID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark saved %s: %w", articleID, err)
	}
	return rows > 0, nil
}

// promoteToSaved sets is_saved without disturbing the viewed state.
// The conflict clause is filtered so an already-saved row is untouched,
// which keeps saved_at stable and lets callers detect a real flip via
// RowsAffected.
func promoteToSaved(e execer, articleID string) (sql.Result, error) {
	return e.Exec(
		`INSERT INTO article_status (article_id, is_saved, is_viewed, saved_at)
		 VALUES (?, 1, 0, ?)
		 ON CONFLICT(article_id) DO UPDATE SET
		   is_saved = 1,
		   saved_at = excluded.saved_at
		 WHERE article_status.is_saved = 0`,
		articleID, time.Now().UTC(),
	)
}

// MarkUnsaved removes the saved flag. Returns whether the flag flipped.
func (s *Store) MarkUnsaved(articleID string) (bool, error) {
	if err := s.requireArticle(articleID); err != nil {
		return false, err
	}
	result, err := s.db.Exec(
		`UPDATE article_status
		 SET is_saved = 0, saved_at = NULL
		 WHERE article_id = ? AND is_saved = 1`,
		articleID,
	)
	if err != nil {
		return false, fmt.Errorf("mark unsaved %s: %w", articleID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark unsaved %s: %w", articleID, err)
	}
	return rows > 0, nil
}

// MarkUnread clears the viewed flag. Returns whether the flag flipped.
// This is a primitive: whether unreading a saved article makes sense is
// a presentation-layer decision, not enforced here.
func (s *Store) MarkUnread(articleID string) (bool, error) {
	if err := s.requireArticle(articleID); err != nil {
		return false, err
	}
	result, err := s.db.Exec(
		`UPDATE article_status
		 SET is_viewed = 0, viewed_at = NULL
		 WHERE article_id = ? AND is_viewed = 1`,
		articleID,
	)
	if err != nil {
		return false, fmt.Errorf("mark unread %s: %w", articleID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark unread %s: %w", articleID, err)
	}
	return rows > 0, nil
}

// GetStatus returns the status row for an article. A missing row reads
// as unsaved/unviewed.
func (s *Store) GetStatus(articleID string) (*ArticleStatus, error) {
	if err := s.requireArticle(articleID); err != nil {
		return nil, err
	}
	status := &ArticleStatus{ArticleID: articleID}
	err := s.db.QueryRow(
		"SELECT is_saved, is_viewed, saved_at, viewed_at FROM article_status WHERE article_id = ?",
		articleID,
	).Scan(&status.Saved, &status.Viewed, &status.SavedAt, &status.ViewedAt)
	if err == sql.ErrNoRows {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get status %s: %w", articleID, err)
	}
	return status, nil
}

// Tag management

// getOrCreateTag returns the tag's ID, creating the tag on first use.
func getOrCreateTag(tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.Exec(
		"INSERT INTO tags (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		name, time.Now().UTC(),
	); err != nil {
		return 0, fmt.Errorf("create tag %q: %w", name, err)
	}
	var id int64
	if err := tx.QueryRow("SELECT id FROM tags WHERE name = ?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup tag %q: %w", name, err)
	}
	return id, nil
}

// AddTag links a tag to an article, creating the tag if needed, and
// promotes the article to saved in the same transaction. Returns false
// if the link already existed.
func (s *Store) AddTag(articleID, name string) (bool, error) {
	if err := s.requireArticle(articleID); err != nil {
		return false, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin add tag: %w", err)
	}
	defer tx.Rollback()

	tagID, err := getOrCreateTag(tx, name)
	if err != nil {
		return false, err
	}

	result, err := tx.Exec(
		`INSERT INTO article_tags (article_id, tag_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(article_id, tag_id) DO NOTHING`,
		articleID, tagID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("link tag %q to %s: %w", name, articleID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link tag %q to %s: %w", name, articleID, err)
	}
	if rows == 0 {
		return false, nil
	}

	// Tagging implies saving.
	if _, err := promoteToSaved(tx, articleID); err != nil {
		return false, fmt.Errorf("promote %s to saved: %w", articleID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit add tag: %w", err)
	}
	return true, nil
}

// RemoveTag unlinks a tag from an article. Returns whether a link was
// removed. Orphaned tags are left in place until CleanupOrphanTags.
func (s *Store) RemoveTag(articleID, name string) (bool, error) {
	if err := s.requireArticle(articleID); err != nil {
		return false, err
	}
	result, err := s.db.Exec(
		`DELETE FROM article_tags
		 WHERE article_id = ? AND tag_id = (SELECT id FROM tags WHERE name = ?)`,
		articleID, name,
	)
	if err != nil {
		return false, fmt.Errorf("remove tag %q from %s: %w", name, articleID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove tag %q from %s: %w", name, articleID, err)
	}
	return rows > 0, nil
}

// CleanupOrphanTags deletes tags with no remaining article links and
// returns how many were removed. Called explicitly after tag removal
// or a purge, never implicitly.
func (s *Store) CleanupOrphanTags() (int, error) {
	result, err := s.db.Exec(
		"DELETE FROM tags WHERE id NOT IN (SELECT DISTINCT tag_id FROM article_tags)",
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup orphan tags: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup orphan tags: %w", err)
	}
	return int(rows), nil
}

// HasTags reports whether an article has at least one tag.
func (s *Store) HasTags(articleID string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM article_tags WHERE article_id = ? LIMIT 1", articleID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check tags %s: %w", articleID, err)
	}
	return true, nil
}

// ListTags returns an article's tag names sorted alphabetically.
func (s *Store) ListTags(articleID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT t.name
		 FROM tags t
		 JOIN article_tags at ON t.id = at.tag_id
		 WHERE at.article_id = ?
		 ORDER BY t.name`,
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tags %s: %w", articleID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListAllTags returns every tag with its live article count, sorted by
// name.
func (s *Store) ListAllTags() ([]TagCount, error) {
	rows, err := s.db.Query(
		`SELECT t.name, COUNT(at.article_id)
		 FROM tags t
		 LEFT JOIN article_tags at ON t.id = at.tag_id
		 GROUP BY t.id, t.name
		 ORDER BY t.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list all tags: %w", err)
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tag count: %w", err)
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

// Notes management

// SetNotesPath attaches a notes-file reference to an article and
// promotes it to saved in the same transaction.
func (s *Store) SetNotesPath(articleID, path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin set notes: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"UPDATE articles SET notes_path = ?, updated_at = ? WHERE id = ?",
		path, time.Now().UTC(), articleID,
	)
	if err != nil {
		return fmt.Errorf("set notes %s: %w", articleID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set notes %s: %w", articleID, err)
	}
	if rows == 0 {
		return fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}

	// Annotating implies saving.
	if _, err := promoteToSaved(tx, articleID); err != nil {
		return fmt.Errorf("promote %s to saved: %w", articleID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set notes: %w", err)
	}
	return nil
}

// GetNotesPath returns the notes-file reference, or "" when none is set.
func (s *Store) GetNotesPath(articleID string) (string, error) {
	var path sql.NullString
	err := s.db.QueryRow("SELECT notes_path FROM articles WHERE id = ?", articleID).Scan(&path)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get notes %s: %w", articleID, err)
	}
	return path.String, nil
}

// ClearNotesPath removes the notes-file reference. Returns whether a
// reference was present. The saved flag is left alone.
func (s *Store) ClearNotesPath(articleID string) (bool, error) {
	if err := s.requireArticle(articleID); err != nil {
		return false, err
	}
	result, err := s.db.Exec(
		"UPDATE articles SET notes_path = NULL, updated_at = ? WHERE id = ? AND notes_path IS NOT NULL",
		time.Now().UTC(), articleID,
	)
	if err != nil {
		return false, fmt.Errorf("clear notes %s: %w", articleID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear notes %s: %w", articleID, err)
	}
	return rows > 0, nil
}
