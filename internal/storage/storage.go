package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by status, tag, and notes operations that
// reference an article ID that was never ingested.
var ErrNotFound = errors.New("article not found")

type Store struct {
	db *sql.DB
}

// Author is a single article author. Order within Article.Authors is
// the order the source reported and is preserved across storage.
type Author struct {
	Name string
}

// Article is a bibliographic record keyed by its source-assigned ID
// (an arXiv ID like "2507.13213v1"). Content fields are immutable once
// ingested; only citation metadata and the notes reference change.
type Article struct {
	ID                 string
	EntryURL           string
	Title              string
	Authors            []Author
	Summary            string
	Categories         []string
	PublishedDate      time.Time
	PDFURL             string
	CitationCount      int
	CitationsUpdatedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	NotesPath          string // empty when no notes file is attached
}

// ArticleView is the row shape every list query returns: the article
// plus its user-state flags and a derived has-tags marker. Absence of a
// status row reads as unsaved/unviewed.
type ArticleView struct {
	Article
	Saved    bool
	Viewed   bool
	SavedAt  *time.Time
	ViewedAt *time.Time
	HasTags  bool
}

// ArticleStatus mirrors one article_status row.
type ArticleStatus struct {
	ArticleID string
	Saved     bool
	Viewed    bool
	SavedAt   *time.Time
	ViewedAt  *time.Time
}

// TagCount pairs a tag name with its live article count.
type TagCount struct {
	Name  string
	Count int
}

// FetchLogEntry records when a category or filter key was last fetched.
type FetchLogEntry struct {
	Key          string
	DisplayName  string
	LastFetched  time.Time
	ArticleCount int
}

// Stats summarizes the store for the maintenance CLI.
type Stats struct {
	TotalArticles  int
	SavedArticles  int
	UnreadArticles int
	TotalTags      int
	TopTags        []TagCount
}

// NewStore opens the database, initializes the schema, and applies any
// pending additive migrations. An error here is fatal: the store must
// not be used uninitialized.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// migrate adds columns introduced after the initial schema. Databases
// created fresh already have them; older ones get an ALTER each. Only
// additive changes are allowed here.
func migrate(db *sql.DB) error {
	migrations := map[string]string{
		"citation_count":       "ALTER TABLE articles ADD COLUMN citation_count INTEGER NOT NULL DEFAULT 0",
		"citations_updated_at": "ALTER TABLE articles ADD COLUMN citations_updated_at DATETIME",
		"notes_path":           "ALTER TABLE articles ADD COLUMN notes_path TEXT",
	}

	columns, err := tableColumns(db, "articles")
	if err != nil {
		return err
	}

	for column, stmt := range migrations {
		if columns[column] {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s: %w", column, err)
		}
	}
	return nil
}

// tableColumns returns the set of column names for a table.
func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info: %w", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- ordered-list column serialization (contract v1: JSON string array) ---

func encodeAuthors(authors []Author) (string, error) {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.Name
	}
	return encodeStringList(names)
}

func decodeAuthors(raw string) ([]Author, error) {
	names, err := decodeStringList(raw)
	if err != nil {
		return nil, err
	}
	authors := make([]Author, len(names))
	for i, name := range names {
		authors[i] = Author{Name: name}
	}
	return authors, nil
}

func encodeStringList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeStringList(raw string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return values, nil
}

// Ingestion

// IngestOne inserts an article and its default status row in one
// transaction. Returns false when the ID already exists; re-ingesting
// never updates content fields. A duplicate-key race with a concurrent
// ingester also counts as "not added", not as an error.
func (s *Store) IngestOne(article *Article) (bool, error) {
	if article.ID == "" {
		return false, fmt.Errorf("ingest article: empty ID")
	}

	authors, err := encodeAuthors(article.Authors)
	if err != nil {
		return false, err
	}
	categories, err := encodeStringList(article.Categories)
	if err != nil {
		return false, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.Exec(
		`INSERT INTO articles (
		     id, entry_url, title, authors, summary, categories,
		     published_date, pdf_url, citation_count, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		article.ID, article.EntryURL, article.Title, authors,
		article.Summary, categories, article.PublishedDate.UTC(),
		article.PDFURL, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert article %s: %w", article.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert article %s: %w", article.ID, err)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO article_status (article_id, is_saved, is_viewed) VALUES (?, 0, 0)",
		article.ID,
	); err != nil {
		return false, fmt.Errorf("insert status %s: %w", article.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit ingest %s: %w", article.ID, err)
	}
	return true, nil
}

// IngestBatch inserts many articles, skipping duplicates and records
// that fail individually. Returns the number actually added; a bad
// record never aborts the rest of the batch.
func (s *Store) IngestBatch(articles []*Article) (int, error) {
	added := 0
	for _, article := range articles {
		ok, err := s.IngestOne(article)
		if err != nil {
			continue
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// ArticleExists reports whether an article ID has been ingested.
func (s *Store) ArticleExists(articleID string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM articles WHERE id = ?", articleID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check article %s: %w", articleID, err)
	}
	return true, nil
}

// requireArticle maps a missing article ID to ErrNotFound.
func (s *Store) requireArticle(articleID string) error {
	exists, err := s.ArticleExists(articleID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}
	return nil
}

// Citation metadata

// UpdateCitationCount records a freshly fetched citation count.
// Returns false if the article does not exist.
func (s *Store) UpdateCitationCount(articleID string, count int) (bool, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE articles
		 SET citation_count = ?, citations_updated_at = ?, updated_at = ?
		 WHERE id = ?`,
		count, now, now, articleID,
	)
	if err != nil {
		return false, fmt.Errorf("update citation count %s: %w", articleID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update citation count %s: %w", articleID, err)
	}
	return rows > 0, nil
}

// ArticlesNeedingCitationRefresh returns articles whose citation count
// has never been fetched or is older than the given number of days.
func (s *Store) ArticlesNeedingCitationRefresh(olderThanDays, limit int) ([]Article, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	rows, err := s.db.Query(
		`SELECT `+articleColumns+`
		 FROM articles a
		 WHERE a.citations_updated_at IS NULL OR a.citations_updated_at < ?
		 ORDER BY a.published_date DESC, a.id ASC
		 LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("citation refresh candidates: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

const articleColumns = `a.id, a.entry_url, a.title, a.authors, a.summary, a.categories,
       a.published_date, a.pdf_url, a.citation_count, a.citations_updated_at,
       a.created_at, a.updated_at, a.notes_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var authors, categories string
	var notesPath sql.NullString
	if err := row.Scan(
		&a.ID, &a.EntryURL, &a.Title, &authors, &a.Summary, &categories,
		&a.PublishedDate, &a.PDFURL, &a.CitationCount, &a.CitationsUpdatedAt,
		&a.CreatedAt, &a.UpdatedAt, &notesPath,
	); err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}

	var err error
	if a.Authors, err = decodeAuthors(authors); err != nil {
		return nil, fmt.Errorf("article %s: %w", a.ID, err)
	}
	if a.Categories, err = decodeStringList(categories); err != nil {
		return nil, fmt.Errorf("article %s: %w", a.ID, err)
	}
	a.NotesPath = notesPath.String
	return &a, nil
}
