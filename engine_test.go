package artui

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

const testAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query Results</title>
  <entry>
    <id>http://arxiv.org/abs/2507.13213v1</id>
    <title>Jet quenching in Pb-Pb collisions</title>
    <summary>First summary.</summary>
    <published>2025-07-17T12:00:00Z</published>
    <updated>2025-07-17T12:00:00Z</updated>
    <author><name>A. Author</name></author>
    <link href="http://arxiv.org/abs/2507.13213v1" rel="alternate" type="text/html"/>
    <category term="hep-ex" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2507.13214v1</id>
    <title>Quark gluon plasma tomography</title>
    <summary>Second summary.</summary>
    <published>2025-07-16T12:00:00Z</published>
    <updated>2025-07-16T12:00:00Z</updated>
    <author><name>B. Author</name></author>
    <link href="http://arxiv.org/abs/2507.13214v1" rel="alternate" type="text/html"/>
    <category term="hep-ph" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, testAtom)
	}))
	t.Cleanup(srv.Close)

	engine, err := NewEngine(EngineConfig{
		DBPath:       filepath.Join(t.TempDir(), "test.db"),
		FetchBaseURL: srv.URL,
		Categories:   map[string]string{"HEP Experiments": "hep-ex"},
		Filters: map[string]Filter{
			"QGP": {Query: "quark gluon plasma", Categories: []string{"hep-ph"}},
		},
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func fetchFixture(t *testing.T, engine *Engine) {
	t.Helper()
	if _, err := engine.FetchAll(context.Background(), false); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
}

func TestEngineFetchAndList(t *testing.T) {
	engine := newTestEngine(t)

	results, err := engine.FetchAll(context.Background(), false)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if results["hep-ex"] != 2 {
		t.Errorf("results = %v, want 2 new for hep-ex", results)
	}
	// The filter fetch returns the same fixture entries; all duplicates.
	if results["filter_QGP"] != 0 {
		t.Errorf("filter_QGP added %d, want 0 (duplicates)", results["filter_QGP"])
	}

	views, err := engine.ListArticles(Selection{Kind: ViewAll})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("listed %d articles, want 2", len(views))
	}
	if views[0].ID != "2507.13213v1" {
		t.Errorf("first article = %s, want newest first", views[0].ID)
	}
	if views[0].Authors[0] != "A. Author" {
		t.Errorf("authors = %v", views[0].Authors)
	}
}

func TestEngineStateTransitions(t *testing.T) {
	engine := newTestEngine(t)
	fetchFixture(t, engine)

	if err := engine.MarkRead("2507.13213v1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if saved, err := engine.Save("2507.13213v1"); err != nil || !saved {
		t.Fatalf("Save = %t, %v", saved, err)
	}

	view, _, err := engine.GetArticle("2507.13213v1")
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if !view.Saved || !view.Viewed {
		t.Errorf("view = %+v, want saved and viewed", view)
	}

	count, err := engine.CountArticles(Selection{Kind: ViewUnread})
	if err != nil {
		t.Fatalf("CountArticles failed: %v", err)
	}
	if count != 1 {
		t.Errorf("unread count = %d, want 1", count)
	}

	if _, _, err := engine.GetArticle("missing"); !IsNotFound(err) {
		t.Errorf("GetArticle(missing) error = %v, want not-found", err)
	}
}

func TestEngineTagsImplySaved(t *testing.T) {
	engine := newTestEngine(t)
	fetchFixture(t, engine)

	if added, err := engine.AddTag("2507.13214v1", "qgp"); err != nil || !added {
		t.Fatalf("AddTag = %t, %v", added, err)
	}

	view, tags, err := engine.GetArticle("2507.13214v1")
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if !view.Saved || !view.HasTags {
		t.Errorf("view = %+v, tagging should save", view)
	}
	if len(tags) != 1 || tags[0] != "qgp" {
		t.Errorf("tags = %v", tags)
	}

	// Even once read and long past the retention window, a tagged
	// article stays visible in its own tag view.
	if err := engine.MarkRead("2507.13214v1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	views, err := engine.ListArticles(Selection{Kind: ViewTag, Tag: "qgp"})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(views) != 1 || views[0].ID != "2507.13214v1" {
		t.Errorf("tag view = %v, want the tagged article regardless of age", views)
	}

	// Removing the last link also drops the now-orphaned tag.
	if removed, err := engine.RemoveTag("2507.13214v1", "qgp"); err != nil || !removed {
		t.Fatalf("RemoveTag = %t, %v", removed, err)
	}
	all, err := engine.ListAllTags()
	if err != nil {
		t.Fatalf("ListAllTags failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("tags after removal = %v, want none", all)
	}
}

func TestEngineFilterSelection(t *testing.T) {
	engine := newTestEngine(t)
	fetchFixture(t, engine)

	views, err := engine.ListArticles(Selection{Kind: ViewFilter, FilterName: "QGP"})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(views) != 1 || views[0].ID != "2507.13214v1" {
		t.Errorf("filter view = %v, want only the hep-ph plasma article", views)
	}

	if _, err := engine.ListArticles(Selection{Kind: ViewFilter, FilterName: "nope"}); err == nil {
		t.Error("expected error for unknown filter name")
	}
}

func TestEngineNotesAndStats(t *testing.T) {
	engine := newTestEngine(t)
	fetchFixture(t, engine)

	if err := engine.SetNotes("2507.13213v1", "notes/jets.md"); err != nil {
		t.Fatalf("SetNotes failed: %v", err)
	}
	path, err := engine.GetNotes("2507.13213v1")
	if err != nil || path != "notes/jets.md" {
		t.Fatalf("GetNotes = %q, %v", path, err)
	}

	views, err := engine.ListArticles(Selection{Kind: ViewNotes})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(views) != 1 {
		t.Errorf("notes view has %d articles, want 1", len(views))
	}

	stats, err := engine.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalArticles != 2 || stats.SavedArticles != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEngineRefreshPurgesThenFetches(t *testing.T) {
	engine := newTestEngine(t)
	fetchFixture(t, engine)

	if _, err := engine.Save("2507.13213v1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	purged, results, err := engine.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Refresh purged %d, want 1", purged)
	}
	// All keys were fetched moments ago, so the threshold skips them.
	if results["hep-ex"] != 0 {
		t.Errorf("results = %v, want hep-ex skipped", results)
	}
}

func TestEnginePurgeSparesSaved(t *testing.T) {
	engine := newTestEngine(t)
	fetchFixture(t, engine)

	// Both fixture articles are long past the 30-day window. Saving one
	// exempts it; the other is swept.
	if _, err := engine.Save("2507.13213v1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	deleted, err := engine.Purge()
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Purge deleted %d, want 1", deleted)
	}

	if _, _, err := engine.GetArticle("2507.13213v1"); err != nil {
		t.Errorf("saved article was purged: %v", err)
	}
	if _, _, err := engine.GetArticle("2507.13214v1"); !IsNotFound(err) {
		t.Errorf("unsaved old article survived the purge, err = %v", err)
	}
}
