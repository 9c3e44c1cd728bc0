package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// SelectionKind names the base view a Selection draws from.
type SelectionKind string

const (
	SelectAll      SelectionKind = "all"
	SelectSaved    SelectionKind = "saved"
	SelectUnread   SelectionKind = "unread"
	SelectNotes    SelectionKind = "notes"
	SelectCategory SelectionKind = "category"
	SelectTag      SelectionKind = "tag"
	SelectFilter   SelectionKind = "filter"
)

// Retention is the feed-retention window. It is an explicit parameter
// on every Selection: zero value means no retention filtering. When
// enabled, articles older than Days are excluded unless unviewed. The
// saved, tag, and notes views are library views over saved content and
// ignore retention entirely.
type Retention struct {
	Enabled bool
	Days    int
}

// Selection describes one list or count query. The same Selection
// value drives ListArticles and CountArticles, so a badge count always
// matches the rows the corresponding view would show.
type Selection struct {
	Kind       SelectionKind
	Category   string   // Kind == SelectCategory
	Tag        string   // Kind == SelectTag
	Categories []string // Kind == SelectFilter, OR-combined
	Query      string   // optional free text, AND-combined
	UnreadOnly bool     // additionally restrict to unviewed rows
	Retention  Retention
}

var unviewedExpr = sq.Expr("(s.is_viewed IS NULL OR s.is_viewed = 0)")

// retentionApplies reports whether a view kind is subject to the feed
// retention window. Library views are not.
func retentionApplies(kind SelectionKind) bool {
	switch kind {
	case SelectSaved, SelectTag, SelectNotes:
		return false
	}
	return true
}

// categoryExpr matches an exact element of the serialized category
// list. json_each keeps "cs.AI" from matching "cs.AIxyz" the way a
// substring test would.
func categoryExpr(category string) sq.Sqlizer {
	return sq.Expr(
		"EXISTS (SELECT 1 FROM json_each(a.categories) WHERE json_each.value = ?)",
		category,
	)
}

// predicates compiles the selection into WHERE clauses shared by list
// and count queries.
func (sel Selection) predicates(now time.Time) ([]sq.Sqlizer, error) {
	var preds []sq.Sqlizer

	switch sel.Kind {
	case SelectAll:
		// no base predicate
	case SelectSaved:
		preds = append(preds, sq.Expr("s.is_saved = 1"))
	case SelectUnread:
		preds = append(preds, unviewedExpr)
	case SelectNotes:
		preds = append(preds, sq.Expr("a.notes_path IS NOT NULL"))
	case SelectCategory:
		if sel.Category == "" {
			return nil, fmt.Errorf("category selection requires a category")
		}
		preds = append(preds, categoryExpr(sel.Category))
	case SelectTag:
		if sel.Tag == "" {
			return nil, fmt.Errorf("tag selection requires a tag name")
		}
		preds = append(preds, sq.Expr(
			`EXISTS (SELECT 1 FROM article_tags at
			         JOIN tags tg ON tg.id = at.tag_id
			         WHERE at.article_id = a.id AND tg.name = ?)`,
			sel.Tag,
		))
	case SelectFilter:
		if len(sel.Categories) > 0 {
			ors := sq.Or{}
			for _, category := range sel.Categories {
				ors = append(ors, categoryExpr(category))
			}
			preds = append(preds, ors)
		}
	default:
		return nil, fmt.Errorf("unknown selection kind %q", sel.Kind)
	}

	if sel.Query != "" {
		like := "%" + strings.ToLower(sel.Query) + "%"
		preds = append(preds, sq.Expr(
			"(LOWER(a.title) LIKE ? OR LOWER(a.authors) LIKE ? OR LOWER(a.summary) LIKE ?)",
			like, like, like,
		))
	}

	if sel.UnreadOnly {
		preds = append(preds, unviewedExpr)
	}

	// Feed retention: hide old articles, but never unread ones. Library
	// views (saved, tagged, annotated) bypass retention regardless of
	// age: tagging and annotating promote to saved, and saved content is
	// never hidden.
	if sel.Retention.Enabled && retentionApplies(sel.Kind) {
		cutoff := now.AddDate(0, 0, -sel.Retention.Days).UTC()
		preds = append(preds, sq.Or{
			sq.Expr("a.published_date >= ?", cutoff),
			unviewedExpr,
		})
	}

	return preds, nil
}

const viewColumns = articleColumns + `,
       COALESCE(s.is_saved, 0), COALESCE(s.is_viewed, 0), s.saved_at, s.viewed_at,
       CASE WHEN t.article_id IS NOT NULL THEN 1 ELSE 0 END`

func viewBuilder() sq.SelectBuilder {
	return sq.Select(viewColumns).
		From("articles a").
		LeftJoin("article_status s ON s.article_id = a.id").
		LeftJoin("(SELECT DISTINCT article_id FROM article_tags) t ON t.article_id = a.id")
}

// ListArticles returns the rows for a selection, newest publication
// first with ID as the deterministic tie-breaker. The row shape is the
// same for every selection kind.
func (s *Store) ListArticles(sel Selection) ([]ArticleView, error) {
	preds, err := sel.predicates(time.Now())
	if err != nil {
		return nil, err
	}

	builder := viewBuilder().OrderBy("a.published_date DESC", "a.id ASC")
	for _, pred := range preds {
		builder = builder.Where(pred)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var views []ArticleView
	for rows.Next() {
		view, err := scanArticleView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, rows.Err()
}

// CountArticles counts the rows a selection would list, using the same
// predicates in a single aggregate query.
func (s *Store) CountArticles(sel Selection) (int, error) {
	preds, err := sel.predicates(time.Now())
	if err != nil {
		return 0, err
	}

	builder := sq.Select("COUNT(*)").
		From("articles a").
		LeftJoin("article_status s ON s.article_id = a.id")
	for _, pred := range preds {
		builder = builder.Where(pred)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

// GetArticle returns a single article with its status flags.
func (s *Store) GetArticle(articleID string) (*ArticleView, error) {
	query, args, err := viewBuilder().Where(sq.Eq{"a.id": articleID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	view, err := scanArticleView(s.db.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("article %s: %w", articleID, ErrNotFound)
		}
		return nil, fmt.Errorf("get article %s: %w", articleID, err)
	}
	return view, nil
}

func scanArticleView(row rowScanner) (*ArticleView, error) {
	var v ArticleView
	var authors, categories string
	var notesPath sql.NullString
	var hasTags int
	if err := row.Scan(
		&v.ID, &v.EntryURL, &v.Title, &authors, &v.Summary, &categories,
		&v.PublishedDate, &v.PDFURL, &v.CitationCount, &v.CitationsUpdatedAt,
		&v.CreatedAt, &v.UpdatedAt, &notesPath,
		&v.Saved, &v.Viewed, &v.SavedAt, &v.ViewedAt, &hasTags,
	); err != nil {
		return nil, fmt.Errorf("scan article view: %w", err)
	}

	var err error
	if v.Authors, err = decodeAuthors(authors); err != nil {
		return nil, fmt.Errorf("article %s: %w", v.ID, err)
	}
	if v.Categories, err = decodeStringList(categories); err != nil {
		return nil, fmt.Errorf("article %s: %w", v.ID, err)
	}
	v.NotesPath = notesPath.String
	v.HasTags = hasTags == 1
	return &v, nil
}
