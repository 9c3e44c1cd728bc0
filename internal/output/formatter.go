package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fjonasALICE/arTui/internal/storage"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// articleJSON is the wire shape for one article row.
type articleJSON struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	Categories    []string   `json:"categories"`
	Summary       string     `json:"summary,omitempty"`
	EntryURL      string     `json:"entry_url"`
	PDFURL        string     `json:"pdf_url,omitempty"`
	PublishedDate time.Time  `json:"published_date"`
	CitationCount int        `json:"citation_count"`
	Saved         bool       `json:"saved"`
	Viewed        bool       `json:"viewed"`
	SavedAt       *time.Time `json:"saved_at,omitempty"`
	ViewedAt      *time.Time `json:"viewed_at,omitempty"`
	HasTags       bool       `json:"has_tags"`
	NotesPath     string     `json:"notes_path,omitempty"`
}

func toArticleJSON(v storage.ArticleView) articleJSON {
	names := make([]string, len(v.Authors))
	for i, a := range v.Authors {
		names[i] = a.Name
	}
	return articleJSON{
		ID:            v.ID,
		Title:         v.Title,
		Authors:       names,
		Categories:    v.Categories,
		Summary:       v.Summary,
		EntryURL:      v.EntryURL,
		PDFURL:        v.PDFURL,
		PublishedDate: v.PublishedDate,
		CitationCount: v.CitationCount,
		Saved:         v.Saved,
		Viewed:        v.Viewed,
		SavedAt:       v.SavedAt,
		ViewedAt:      v.ViewedAt,
		HasTags:       v.HasTags,
		NotesPath:     v.NotesPath,
	}
}

// OutputArticleList outputs a list of articles
func (f *Formatter) OutputArticleList(views []storage.ArticleView) error {
	switch f.format {
	case FormatJSON:
		rows := make([]articleJSON, len(views))
		for i, v := range views {
			rows[i] = toArticleJSON(v)
		}
		return json.NewEncoder(f.out).Encode(rows)
	case FormatText:
		for _, v := range views {
			fmt.Fprintf(f.out, "id=%s\ttitle=%s\tpublished=%s\tsaved=%t\tviewed=%t\n",
				v.ID, v.Title, v.PublishedDate.Format(time.RFC3339), v.Saved, v.Viewed)
		}
		return nil
	case FormatHuman:
		if len(views) == 0 {
			fmt.Fprintln(f.out, "No articles")
			return nil
		}
		fmt.Fprintf(f.out, "Articles (%d):\n\n", len(views))
		for _, v := range views {
			fmt.Fprintf(f.out, "%s %s\n", statusMarker(v), v.Title)
			fmt.Fprintf(f.out, "  %s | %s | %s\n",
				v.ID, strings.Join(v.Categories, ", "), v.PublishedDate.Format("2006-01-02"))
			if len(v.Authors) > 0 {
				fmt.Fprintf(f.out, "  %s\n", authorLine(v.Authors))
			}
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputArticle outputs one article in full.
func (f *Formatter) OutputArticle(v *storage.ArticleView, tags []string) error {
	switch f.format {
	case FormatJSON:
		row := struct {
			articleJSON
			Tags []string `json:"tags,omitempty"`
		}{toArticleJSON(*v), tags}
		return json.NewEncoder(f.out).Encode(row)
	case FormatText:
		fmt.Fprintf(f.out, "id=%s\ttitle=%s\tsaved=%t\tviewed=%t\ttags=%s\n",
			v.ID, v.Title, v.Saved, v.Viewed, strings.Join(tags, ","))
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Title: %s\n", v.Title)
		fmt.Fprintf(f.out, "ID: %s\n", v.ID)
		fmt.Fprintf(f.out, "Authors: %s\n", authorLine(v.Authors))
		fmt.Fprintf(f.out, "Categories: %s\n", strings.Join(v.Categories, ", "))
		fmt.Fprintf(f.out, "Published: %s\n", v.PublishedDate.Format("2006-01-02 15:04"))
		fmt.Fprintf(f.out, "URL: %s\n", v.EntryURL)
		if v.PDFURL != "" {
			fmt.Fprintf(f.out, "PDF: %s\n", v.PDFURL)
		}
		if v.CitationCount > 0 {
			fmt.Fprintf(f.out, "Citations: %d\n", v.CitationCount)
		}
		if len(tags) > 0 {
			fmt.Fprintf(f.out, "Tags: %s\n", strings.Join(tags, ", "))
		}
		if v.NotesPath != "" {
			fmt.Fprintf(f.out, "Notes: %s\n", v.NotesPath)
		}
		if v.Summary != "" {
			fmt.Fprintf(f.out, "\n%s\n", truncate(v.Summary, 600))
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputFetchResults outputs per-key fetch counts, keys sorted.
func (f *Formatter) OutputFetchResults(results map[string]int) error {
	keys := make([]string, 0, len(results))
	total := 0
	for key, added := range results {
		keys = append(keys, key)
		total += added
	}
	sort.Strings(keys)

	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]any{
			"new_articles": total,
			"by_key":       results,
		})
	case FormatText:
		for _, key := range keys {
			fmt.Fprintf(f.out, "key=%s\tnew=%d\n", key, results[key])
		}
		fmt.Fprintf(f.out, "total=%d\n", total)
		return nil
	case FormatHuman:
		for _, key := range keys {
			fmt.Fprintf(f.out, "  %s: %d new\n", key, results[key])
		}
		fmt.Fprintf(f.out, "Fetched %d new articles\n", total)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputTagList outputs tags with their article counts.
func (f *Formatter) OutputTagList(tags []storage.TagCount) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(tags)
	case FormatText:
		for _, tag := range tags {
			fmt.Fprintf(f.out, "tag=%s\tcount=%d\n", tag.Name, tag.Count)
		}
		return nil
	case FormatHuman:
		if len(tags) == 0 {
			fmt.Fprintln(f.out, "No tags")
			return nil
		}
		for _, tag := range tags {
			fmt.Fprintf(f.out, "  %s (%d)\n", tag.Name, tag.Count)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputStats outputs store statistics.
func (f *Formatter) OutputStats(stats *storage.Stats) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(stats)
	case FormatText:
		fmt.Fprintf(f.out, "articles=%d\n", stats.TotalArticles)
		fmt.Fprintf(f.out, "saved=%d\n", stats.SavedArticles)
		fmt.Fprintf(f.out, "unread=%d\n", stats.UnreadArticles)
		fmt.Fprintf(f.out, "tags=%d\n", stats.TotalTags)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Articles: %d (%d saved, %d unread)\n",
			stats.TotalArticles, stats.SavedArticles, stats.UnreadArticles)
		fmt.Fprintf(f.out, "Tags: %d\n", stats.TotalTags)
		if len(stats.TopTags) > 0 {
			fmt.Fprintln(f.out, "Top tags:")
			for _, tag := range stats.TopTags {
				fmt.Fprintf(f.out, "  %s (%d)\n", tag.Name, tag.Count)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputPurgeResult outputs a retention sweep summary.
func (f *Formatter) OutputPurgeResult(deleted, retentionDays int) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]int{
			"deleted":        deleted,
			"retention_days": retentionDays,
		})
	case FormatText:
		fmt.Fprintf(f.out, "deleted=%d\tretention_days=%d\n", deleted, retentionDays)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Purged %d unsaved articles older than %d days\n", deleted, retentionDays)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputImportResult outputs a legacy text-file import summary.
func (f *Formatter) OutputImportResult(stats storage.LegacyImportStats) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]int{
			"saved_imported":  stats.SavedImported,
			"viewed_imported": stats.ViewedImported,
			"errors":          stats.Errors,
		})
	case FormatText:
		fmt.Fprintf(f.out, "saved=%d\tviewed=%d\terrors=%d\n",
			stats.SavedImported, stats.ViewedImported, stats.Errors)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Imported %d saved and %d viewed articles\n",
			stats.SavedImported, stats.ViewedImported)
		if stats.Errors > 0 {
			fmt.Fprintf(f.out, "Skipped %d entries that could not be imported\n", stats.Errors)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

func statusMarker(v storage.ArticleView) string {
	switch {
	case v.Saved:
		return "[S]"
	case v.Viewed:
		return "[ ]"
	default:
		return "[*]"
	}
}

// authorLine renders up to three author names, eliding the rest.
func authorLine(authors []storage.Author) string {
	names := make([]string, 0, 3)
	for i, a := range authors {
		if i == 3 {
			return strings.Join(names, ", ") + " et al."
		}
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
