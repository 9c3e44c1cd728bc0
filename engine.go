package artui

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjonasALICE/arTui/internal/arxiv"
	"github.com/fjonasALICE/arTui/internal/storage"
)

// ErrNotFound reports an article ID that was never ingested.
var ErrNotFound = storage.ErrNotFound

// Engine is the public API for the arTui article store: fetching from
// arXiv, listing and counting views, and managing read/saved state,
// tags, and notes.
type Engine struct {
	store   *storage.Store
	fetcher *arxiv.Fetcher
	config  *storage.Config
}

// NewEngine opens the database and prepares the arXiv fetcher.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	storeCfg := storage.DefaultConfig()
	if cfg.DBPath != "" {
		storeCfg.Database.Path = cfg.DBPath
	}
	if cfg.FetchThresholdHours > 0 {
		storeCfg.Fetch.ThresholdHours = cfg.FetchThresholdHours
	}
	if cfg.FetchMaxResults > 0 {
		storeCfg.Fetch.MaxResults = cfg.FetchMaxResults
	}
	if cfg.FeedRetentionDays > 0 {
		storeCfg.FeedRetentionDays = cfg.FeedRetentionDays
	}
	if cfg.Categories != nil {
		storeCfg.Categories = cfg.Categories
	}
	if cfg.Filters != nil {
		storeCfg.Filters = make(map[string]storage.FilterSpec, len(cfg.Filters))
		for name, filter := range cfg.Filters {
			storeCfg.Filters[name] = storage.FilterSpec{
				Categories: filter.Categories,
				Query:      filter.Query,
			}
		}
	}

	store, err := storage.NewStore(storeCfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	fetcher := arxiv.NewFetcher(store)
	fetcher.MaxResults = storeCfg.Fetch.MaxResults
	if cfg.FetchBaseURL != "" {
		fetcher.BaseURL = cfg.FetchBaseURL
	}

	return &Engine{
		store:   store,
		fetcher: fetcher,
		config:  storeCfg,
	}, nil
}

// FetchAll fetches every configured category and filter that is due,
// or everything when force is set. Returns new-article counts per
// fetch-log key.
func (e *Engine) FetchAll(ctx context.Context, force bool) (map[string]int, error) {
	return e.fetcher.FetchAll(ctx, e.config, force)
}

// FetchRecent fetches only articles from the last days, capped per
// key. A lighter alternative to FetchAll for interactive startup.
func (e *Engine) FetchRecent(ctx context.Context, days int) (map[string]int, error) {
	return e.fetcher.FetchRecent(ctx, e.config, days, 50)
}

// Refresh runs one maintenance cycle: purge expired unsaved articles,
// then fetch every key that is due. Returns the purge count and the
// per-key new-article tally.
func (e *Engine) Refresh(ctx context.Context) (int, map[string]int, error) {
	purged, err := e.Purge()
	if err != nil {
		return 0, nil, err
	}
	results, err := e.FetchAll(ctx, false)
	if err != nil {
		return purged, nil, err
	}
	return purged, results, nil
}

// selection translates a public selection into its storage form,
// attaching the configured retention window. Retention applies to feed
// views only; the storage layer exempts the library views (saved, tag,
// notes) on its own.
func (e *Engine) selection(sel Selection) (storage.Selection, error) {
	out := storage.Selection{
		Kind:       storage.SelectionKind(sel.Kind),
		Category:   sel.Category,
		Tag:        sel.Tag,
		Query:      sel.Query,
		UnreadOnly: sel.UnreadOnly,
		Retention: storage.Retention{
			Enabled: e.config.FeedRetentionDays > 0,
			Days:    e.config.FeedRetentionDays,
		},
	}
	if sel.Kind == ViewFilter {
		spec, ok := e.config.Filters[sel.FilterName]
		if !ok {
			return out, fmt.Errorf("unknown filter %q", sel.FilterName)
		}
		out.Categories = spec.Categories
		if out.Query == "" {
			out.Query = spec.Query
		}
	}
	return out, nil
}

// ListArticles returns the articles a selection matches, newest first.
func (e *Engine) ListArticles(sel Selection) ([]ArticleView, error) {
	storageSel, err := e.selection(sel)
	if err != nil {
		return nil, err
	}
	views, err := e.store.ListArticles(storageSel)
	if err != nil {
		return nil, err
	}
	return viewsFromInternal(views), nil
}

// CountArticles counts the articles a selection matches. Guaranteed
// consistent with ListArticles for the same selection.
func (e *Engine) CountArticles(sel Selection) (int, error) {
	storageSel, err := e.selection(sel)
	if err != nil {
		return 0, err
	}
	return e.store.CountArticles(storageSel)
}

// GetArticle returns one article with its status and tags.
func (e *Engine) GetArticle(articleID string) (*ArticleView, []string, error) {
	view, err := e.store.GetArticle(articleID)
	if err != nil {
		return nil, nil, err
	}
	tags, err := e.store.ListTags(articleID)
	if err != nil {
		return nil, nil, err
	}
	result := viewFromInternal(*view)
	return &result, tags, nil
}

// MarkRead marks an article as viewed.
func (e *Engine) MarkRead(articleID string) error {
	return e.store.MarkViewed(articleID)
}

// MarkUnread clears the viewed flag. Returns whether it was set.
func (e *Engine) MarkUnread(articleID string) (bool, error) {
	return e.store.MarkUnread(articleID)
}

// Save marks an article as saved. Returns whether the flag flipped.
func (e *Engine) Save(articleID string) (bool, error) {
	return e.store.MarkSaved(articleID)
}

// Unsave clears the saved flag. Returns whether it was set.
func (e *Engine) Unsave(articleID string) (bool, error) {
	return e.store.MarkUnsaved(articleID)
}

// AddTag tags an article, saving it as a side effect.
func (e *Engine) AddTag(articleID, tag string) (bool, error) {
	return e.store.AddTag(articleID, tag)
}

// RemoveTag untags an article and drops the tag itself if nothing else
// uses it.
func (e *Engine) RemoveTag(articleID, tag string) (bool, error) {
	removed, err := e.store.RemoveTag(articleID, tag)
	if err != nil {
		return false, err
	}
	if removed {
		if _, err := e.store.CleanupOrphanTags(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// ListAllTags returns every tag with its article count.
func (e *Engine) ListAllTags() ([]TagCount, error) {
	tags, err := e.store.ListAllTags()
	if err != nil {
		return nil, err
	}
	return tagCountsFromInternal(tags), nil
}

// SetNotes attaches a notes-file path, saving the article as a side
// effect.
func (e *Engine) SetNotes(articleID, path string) error {
	return e.store.SetNotesPath(articleID, path)
}

// GetNotes returns the notes-file path, or "" when none is set.
func (e *Engine) GetNotes(articleID string) (string, error) {
	return e.store.GetNotesPath(articleID)
}

// ClearNotes removes the notes-file reference.
func (e *Engine) ClearNotes(articleID string) (bool, error) {
	return e.store.ClearNotesPath(articleID)
}

// Purge deletes unsaved articles older than the configured retention
// window and cleans up orphaned tags. Returns the number of deleted
// articles; a no-op when retention is disabled.
func (e *Engine) Purge() (int, error) {
	if e.config.FeedRetentionDays <= 0 {
		return 0, nil
	}
	return e.store.PurgeOldUnsaved(e.config.FeedRetentionDays)
}

// Stats returns aggregate store statistics.
func (e *Engine) Stats() (*Stats, error) {
	stats, err := e.store.GetStats()
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalArticles:  stats.TotalArticles,
		SavedArticles:  stats.SavedArticles,
		UnreadArticles: stats.UnreadArticles,
		TotalTags:      stats.TotalTags,
		TopTags:        tagCountsFromInternal(stats.TopTags),
	}, nil
}

// ImportLegacy imports saved/viewed state from the old text-file
// format. Missing files are skipped.
func (e *Engine) ImportLegacy(savedPath, viewedPath string) (ImportStats, error) {
	stats, err := e.store.ImportLegacyTextFiles(savedPath, viewedPath)
	if err != nil {
		return ImportStats{}, err
	}
	return ImportStats{
		SavedImported:  stats.SavedImported,
		ViewedImported: stats.ViewedImported,
		Errors:         stats.Errors,
	}, nil
}

// IsNotFound reports whether an error means the article does not
// exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

// Close releases the database.
func (e *Engine) Close() error {
	return e.store.Close()
}

// --- internal type conversion helpers ---

func viewFromInternal(v storage.ArticleView) ArticleView {
	names := make([]string, len(v.Authors))
	for i, a := range v.Authors {
		names[i] = a.Name
	}
	return ArticleView{
		Article: Article{
			ID:            v.ID,
			Title:         v.Title,
			Authors:       names,
			Summary:       v.Summary,
			Categories:    v.Categories,
			PublishedDate: v.PublishedDate,
			EntryURL:      v.EntryURL,
			PDFURL:        v.PDFURL,
			CitationCount: v.CitationCount,
			NotesPath:     v.NotesPath,
		},
		Saved:    v.Saved,
		Viewed:   v.Viewed,
		SavedAt:  v.SavedAt,
		ViewedAt: v.ViewedAt,
		HasTags:  v.HasTags,
	}
}

func viewsFromInternal(views []storage.ArticleView) []ArticleView {
	out := make([]ArticleView, len(views))
	for i, v := range views {
		out[i] = viewFromInternal(v)
	}
	return out
}

func tagCountsFromInternal(tags []storage.TagCount) []TagCount {
	out := make([]TagCount, len(tags))
	for i, tag := range tags {
		out[i] = TagCount{Name: tag.Name, Count: tag.Count}
	}
	return out
}
