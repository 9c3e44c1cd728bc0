package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fjonasALICE/arTui/internal/storage"
)

func testView(id string) storage.ArticleView {
	return storage.ArticleView{
		Article: storage.Article{
			ID:            id,
			EntryURL:      "http://arxiv.org/abs/" + id,
			Title:         "Some Measurement",
			Authors:       []storage.Author{{Name: "A. Author"}, {Name: "B. Author"}},
			Summary:       "A summary.",
			Categories:    []string{"hep-ex"},
			PublishedDate: time.Date(2025, 7, 17, 12, 0, 0, 0, time.UTC),
			PDFURL:        "http://arxiv.org/pdf/" + id,
		},
		Saved:  true,
		Viewed: false,
	}
}

func TestOutputArticleListJSON(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &bytes.Buffer{})

	if err := f.OutputArticleList([]storage.ArticleView{testView("2507.13213v1")}); err != nil {
		t.Fatalf("OutputArticleList failed: %v", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["id"] != "2507.13213v1" {
		t.Errorf("id = %v", rows[0]["id"])
	}
	if rows[0]["saved"] != true {
		t.Errorf("saved = %v, want true", rows[0]["saved"])
	}
	authors, ok := rows[0]["authors"].([]any)
	if !ok || len(authors) != 2 || authors[0] != "A. Author" {
		t.Errorf("authors = %v", rows[0]["authors"])
	}
}

func TestOutputArticleListText(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &bytes.Buffer{})

	if err := f.OutputArticleList([]storage.ArticleView{testView("2507.13213v1")}); err != nil {
		t.Fatalf("OutputArticleList failed: %v", err)
	}
	line := out.String()
	if !strings.Contains(line, "id=2507.13213v1") || !strings.Contains(line, "saved=true") {
		t.Errorf("text output = %q", line)
	}
}

func TestOutputArticleListHumanEmpty(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &bytes.Buffer{})

	if err := f.OutputArticleList(nil); err != nil {
		t.Fatalf("OutputArticleList failed: %v", err)
	}
	if !strings.Contains(out.String(), "No articles") {
		t.Errorf("human output = %q", out.String())
	}
}

func TestOutputArticleHuman(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &bytes.Buffer{})

	view := testView("2507.13213v1")
	if err := f.OutputArticle(&view, []string{"alice", "jets"}); err != nil {
		t.Fatalf("OutputArticle failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Some Measurement", "2507.13213v1", "Tags: alice, jets", "A summary."} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestOutputFetchResults(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &bytes.Buffer{})

	results := map[string]int{"hep-ex": 3, "filter_ALICE": 2}
	if err := f.OutputFetchResults(results); err != nil {
		t.Fatalf("OutputFetchResults failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "total=5") {
		t.Errorf("output missing total: %q", got)
	}
	// Keys come out sorted.
	if strings.Index(got, "filter_ALICE") > strings.Index(got, "hep-ex") {
		t.Errorf("keys not sorted: %q", got)
	}
}

func TestOutputStatsJSON(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &bytes.Buffer{})

	stats := &storage.Stats{
		TotalArticles:  10,
		SavedArticles:  3,
		UnreadArticles: 4,
		TotalTags:      2,
		TopTags:        []storage.TagCount{{Name: "alice", Count: 2}},
	}
	if err := f.OutputStats(stats); err != nil {
		t.Fatalf("OutputStats failed: %v", err)
	}
	var decoded storage.Stats
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if decoded.TotalArticles != 10 || len(decoded.TopTags) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestUnknownFormat(t *testing.T) {
	f := NewFormatterWithWriters(Format("yaml"), &bytes.Buffer{}, &bytes.Buffer{})
	if err := f.OutputArticleList(nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestAuthorLineElision(t *testing.T) {
	authors := []storage.Author{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}
	if got := authorLine(authors); got != "A, B, C et al." {
		t.Errorf("authorLine = %q", got)
	}
	if got := authorLine(authors[:2]); got != "A, B" {
		t.Errorf("authorLine = %q", got)
	}
}
