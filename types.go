package artui

import "time"

// EngineConfig configures the arTui article engine. Zero values fall
// back to the defaults from storage.DefaultConfig.
type EngineConfig struct {
	DBPath              string
	FetchBaseURL        string // override the arXiv API endpoint, mainly for tests
	FetchThresholdHours int
	FetchMaxResults     int
	FeedRetentionDays   int
	Categories          map[string]string // display name -> arXiv category code
	Filters             map[string]Filter
}

// Filter is a named saved-search over arXiv: free text, categories, or
// both.
type Filter struct {
	Categories []string `json:"categories,omitempty"`
	Query      string   `json:"query,omitempty"`
}

// Article is one bibliographic record.
type Article struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Authors       []string  `json:"authors"`
	Summary       string    `json:"summary,omitempty"`
	Categories    []string  `json:"categories"`
	PublishedDate time.Time `json:"published_date"`
	EntryURL      string    `json:"entry_url"`
	PDFURL        string    `json:"pdf_url,omitempty"`
	CitationCount int       `json:"citation_count"`
	NotesPath     string    `json:"notes_path,omitempty"`
}

// ArticleView is an article together with its user state.
type ArticleView struct {
	Article
	Saved    bool       `json:"saved"`
	Viewed   bool       `json:"viewed"`
	SavedAt  *time.Time `json:"saved_at,omitempty"`
	ViewedAt *time.Time `json:"viewed_at,omitempty"`
	HasTags  bool       `json:"has_tags"`
}

// ViewKind selects the base article view.
type ViewKind string

const (
	ViewAll      ViewKind = "all"
	ViewSaved    ViewKind = "saved"
	ViewUnread   ViewKind = "unread"
	ViewNotes    ViewKind = "notes"
	ViewCategory ViewKind = "category"
	ViewTag      ViewKind = "tag"
	ViewFilter   ViewKind = "filter"
)

// Selection describes which articles to list or count. The engine
// applies the configured feed-retention window to the feed views; the
// saved, tag, and notes views show their content regardless of age.
type Selection struct {
	Kind       ViewKind
	Category   string // Kind == ViewCategory
	Tag        string // Kind == ViewTag
	FilterName string // Kind == ViewFilter, resolved against the configured filters
	Query      string // optional free text
	UnreadOnly bool
}

// TagCount pairs a tag name with its article count.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes the article store.
type Stats struct {
	TotalArticles  int        `json:"total_articles"`
	SavedArticles  int        `json:"saved_articles"`
	UnreadArticles int        `json:"unread_articles"`
	TotalTags      int        `json:"total_tags"`
	TopTags        []TagCount `json:"top_tags,omitempty"`
}

// ImportStats tallies a legacy text-file import.
type ImportStats struct {
	SavedImported  int `json:"saved_imported"`
	ViewedImported int `json:"viewed_imported"`
	Errors         int `json:"errors"`
}
