package arxiv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fjonasALICE/arTui/internal/storage"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

// Fetcher pulls article listings from the arXiv Atom API and stores
// them. BaseURL and MaxResults may be overridden before first use.
type Fetcher struct {
	BaseURL    string
	MaxResults int

	parser *gofeed.Parser
	client *http.Client
	policy *bluemonday.Policy
	store  *storage.Store
}

// NewFetcher creates a fetcher bound to a store.
func NewFetcher(store *storage.Store) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "arTui/1.0"
	return &Fetcher{
		BaseURL:    defaultBaseURL,
		MaxResults: 200,
		parser:     parser,
		client:     &http.Client{},
		policy:     bluemonday.StrictPolicy(),
		store:      store,
	}
}

// CategoryQuery builds the arXiv search term for a category code. A
// top-level archive (no dot, no dash) covers all its subcategories;
// q-bio and q-fin contain a dash but are archives too.
func CategoryQuery(code string) string {
	if !strings.Contains(code, ".") && !strings.Contains(code, "-") {
		return "cat:" + code + ".*"
	}
	if code == "q-bio" || code == "q-fin" {
		return "cat:" + code + ".*"
	}
	return "cat:" + code
}

// FilterQuery builds the search term for a named filter: the free-text
// query and the category alternatives, AND-combined. Returns "" when
// the filter has no terms at all.
func FilterQuery(spec storage.FilterSpec) string {
	var terms []string
	if spec.Query != "" {
		terms = append(terms, fmt.Sprintf("all:%q", spec.Query))
	}
	if len(spec.Categories) > 0 {
		cats := make([]string, len(spec.Categories))
		for i, code := range spec.Categories {
			cats[i] = CategoryQuery(code)
		}
		terms = append(terms, "("+strings.Join(cats, " OR ")+")")
	}
	return strings.Join(terms, " AND ")
}

func (f *Fetcher) queryURL(searchQuery string, maxResults int) string {
	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	return f.BaseURL + "?" + params.Encode()
}

// Search runs one API query and converts the resulting entries.
// Entries that cannot be converted are skipped with a warning.
func (f *Fetcher) Search(ctx context.Context, searchQuery string, maxResults int) ([]*storage.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.queryURL(searchQuery, maxResults), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "arTui/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var articles []*storage.Article
	for _, item := range feed.Items {
		article, err := f.itemToArticle(item)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping entry %s: %v\n", item.GUID, err)
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

// itemToArticle converts one Atom entry. The entry ID is an abstract
// URL like http://arxiv.org/abs/2507.13213v1; the short ID after abs/
// becomes the primary key and the PDF URL is the abs URL with the path
// segment swapped.
func (f *Fetcher) itemToArticle(item *gofeed.Item) (*storage.Article, error) {
	entryURL := item.GUID
	if entryURL == "" {
		entryURL = item.Link
	}
	id, err := ShortID(entryURL)
	if err != nil {
		return nil, err
	}

	article := &storage.Article{
		ID:         id,
		EntryURL:   entryURL,
		Title:      strings.Join(strings.Fields(item.Title), " "),
		Summary:    strings.Join(strings.Fields(f.policy.Sanitize(item.Description)), " "),
		Categories: item.Categories,
		PDFURL:     strings.Replace(entryURL, "/abs/", "/pdf/", 1),
	}
	for _, person := range item.Authors {
		if person != nil && person.Name != "" {
			article.Authors = append(article.Authors, storage.Author{Name: person.Name})
		}
	}
	if item.PublishedParsed != nil {
		article.PublishedDate = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		article.PublishedDate = item.UpdatedParsed.UTC()
	} else {
		return nil, fmt.Errorf("entry has no publication date")
	}
	return article, nil
}

// ShortID extracts the arXiv ID from an abstract-page URL.
func ShortID(entryURL string) (string, error) {
	_, id, found := strings.Cut(entryURL, "abs/")
	if !found || id == "" {
		return "", fmt.Errorf("no article ID in %q", entryURL)
	}
	return id, nil
}

// FetchCategory fetches one category listing, ingests the results, and
// records the fetch. Returns the number of newly added articles.
func (f *Fetcher) FetchCategory(ctx context.Context, code, displayName string) (int, error) {
	articles, err := f.Search(ctx, CategoryQuery(code), f.MaxResults)
	if err != nil {
		return 0, fmt.Errorf("fetch category %s: %w", code, err)
	}
	added, err := f.store.IngestBatch(articles)
	if err != nil {
		return 0, err
	}
	if err := f.store.RecordFetch(code, displayName, len(articles)); err != nil {
		return added, err
	}
	return added, nil
}

// FetchFilter fetches one named filter. The fetch log keys filters as
// "filter_<name>" so they never collide with category codes.
func (f *Fetcher) FetchFilter(ctx context.Context, name string, spec storage.FilterSpec) (int, error) {
	query := FilterQuery(spec)
	if query == "" {
		return 0, fmt.Errorf("filter %s has no search terms", name)
	}
	articles, err := f.Search(ctx, query, f.MaxResults)
	if err != nil {
		return 0, fmt.Errorf("fetch filter %s: %w", name, err)
	}
	added, err := f.store.IngestBatch(articles)
	if err != nil {
		return 0, err
	}
	if err := f.store.RecordFetch("filter_"+name, name, len(articles)); err != nil {
		return added, err
	}
	return added, nil
}

// FetchAll fetches every configured category and filter that is due,
// or everything when force is set. One failing key never aborts the
// rest; failures are reported on stderr and the key is skipped. The
// result maps fetch-log keys to newly added article counts.
func (f *Fetcher) FetchAll(ctx context.Context, cfg *storage.Config, force bool) (map[string]int, error) {
	threshold := time.Duration(cfg.Fetch.ThresholdHours) * time.Hour
	results := make(map[string]int)

	for _, name := range sortedKeys(cfg.Categories) {
		code := cfg.Categories[name]
		due, err := f.shouldFetch(code, threshold, force)
		if err != nil {
			return results, err
		}
		if !due {
			results[code] = 0
			continue
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		added, err := f.FetchCategory(fetchCtx, code, name)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			continue
		}
		results[code] = added
	}

	for _, name := range sortedKeys(cfg.Filters) {
		due, err := f.shouldFetch("filter_"+name, threshold, force)
		if err != nil {
			return results, err
		}
		if !due {
			results["filter_"+name] = 0
			continue
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		added, err := f.FetchFilter(fetchCtx, name, cfg.Filters[name])
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			continue
		}
		results["filter_"+name] = added
	}

	return results, nil
}

// FetchRecent is the lighter startup variant: a small capped query per
// key, keeping only entries published within the last days. Results
// arrive newest first, so conversion stops at the first older entry.
// The fetch log is not consulted or updated.
func (f *Fetcher) FetchRecent(ctx context.Context, cfg *storage.Config, days, maxPerKey int) (map[string]int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	results := make(map[string]int)

	fetchOne := func(key, query string) {
		fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		articles, err := f.Search(fetchCtx, query, maxPerKey)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: fetch recent %s: %v\n", key, err)
			results[key] = 0
			return
		}
		recent := articles[:0]
		for _, article := range articles {
			if article.PublishedDate.Before(cutoff) {
				break
			}
			recent = append(recent, article)
		}
		added, err := f.store.IngestBatch(recent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: ingest recent %s: %v\n", key, err)
		}
		results[key] = added
	}

	for _, name := range sortedKeys(cfg.Categories) {
		code := cfg.Categories[name]
		fetchOne(code, CategoryQuery(code))
	}
	for _, name := range sortedKeys(cfg.Filters) {
		query := FilterQuery(cfg.Filters[name])
		if query == "" {
			results["filter_"+name] = 0
			continue
		}
		fetchOne("filter_"+name, query)
	}
	return results, nil
}

func (f *Fetcher) shouldFetch(key string, threshold time.Duration, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return f.store.ShouldFetch(key, threshold)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
