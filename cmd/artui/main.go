package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fjonasALICE/arTui/internal/arxiv"
	"github.com/fjonasALICE/arTui/internal/output"
	"github.com/fjonasALICE/arTui/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "artui",
		Short: "Local arXiv article store - fetch, browse, save, and tag papers",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(unsaveCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(unreadCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(notesCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(initConfigCmd())
	rootCmd.AddCommand(daemonCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = storage.DefaultConfig()
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg = storage.DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

func openStore() (*storage.Store, error) {
	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// retention is the window applied to feed views. The saved view is
// exempt inside the storage layer.
func retention() storage.Retention {
	return storage.Retention{
		Enabled: cfg.FeedRetentionDays > 0,
		Days:    cfg.FeedRetentionDays,
	}
}

func fetchCmd() *cobra.Command {
	var force bool
	var recentDays int
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch new articles for all configured categories and filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			fetcher := arxiv.NewFetcher(store)
			fetcher.MaxResults = cfg.Fetch.MaxResults

			var results map[string]int
			if recentDays > 0 {
				results, err = fetcher.FetchRecent(context.Background(), cfg, recentDays, 50)
			} else {
				results, err = fetcher.FetchAll(context.Background(), cfg, force)
			}
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}

			return formatter.OutputFetchResults(results)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "fetch even if recently fetched")
	cmd.Flags().IntVar(&recentDays, "recent", 0, "only fetch articles from the last N days (lighter query)")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		saved, unread, notes, unreadOnly bool
		category, tag, filterName        string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles from a view",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			sel := storage.Selection{Kind: storage.SelectAll, Retention: retention()}
			switch {
			case saved:
				sel.Kind = storage.SelectSaved
			case unread:
				sel.Kind = storage.SelectUnread
			case notes:
				sel.Kind = storage.SelectNotes
			case category != "":
				sel.Kind = storage.SelectCategory
				sel.Category = category
			case tag != "":
				sel.Kind = storage.SelectTag
				sel.Tag = tag
			case filterName != "":
				spec, ok := cfg.Filters[filterName]
				if !ok {
					return fmt.Errorf("unknown filter %q", filterName)
				}
				sel.Kind = storage.SelectFilter
				sel.Categories = spec.Categories
				sel.Query = spec.Query
			}
			sel.UnreadOnly = unreadOnly

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			views, err := store.ListArticles(sel)
			if err != nil {
				return fmt.Errorf("failed to list articles: %w", err)
			}
			return formatter.OutputArticleList(views)
		},
	}
	cmd.Flags().BoolVar(&saved, "saved", false, "saved articles only")
	cmd.Flags().BoolVar(&unread, "unread", false, "unread articles only")
	cmd.Flags().BoolVar(&notes, "notes", false, "articles with notes only")
	cmd.Flags().BoolVar(&unreadOnly, "unread-only", false, "restrict the selected view to unread articles")
	cmd.Flags().StringVar(&category, "category", "", "articles in an arXiv category")
	cmd.Flags().StringVar(&tag, "tag", "", "articles carrying a tag")
	cmd.Flags().StringVar(&filterName, "filter", "", "articles matching a configured filter")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored articles by title, authors, and abstract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			views, err := store.ListArticles(storage.Selection{
				Kind:      storage.SelectAll,
				Query:     args[0],
				Retention: retention(),
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return formatter.OutputArticleList(views)
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <article-id>",
		Short: "Show one article in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			view, err := store.GetArticle(args[0])
			if err != nil {
				return err
			}
			tags, err := store.ListTags(args[0])
			if err != nil {
				return err
			}
			return formatter.OutputArticle(view, tags)
		},
	}
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <article-id>",
		Short: "Mark an article as saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			changed, err := store.MarkSaved(args[0])
			if err != nil {
				return err
			}
			if changed {
				fmt.Printf("Saved article %s\n", args[0])
			} else {
				fmt.Printf("Article %s was already saved\n", args[0])
			}
			return nil
		},
	}
}

func unsaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsave <article-id>",
		Short: "Remove the saved flag from an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			changed, err := store.MarkUnsaved(args[0])
			if err != nil {
				return err
			}
			if changed {
				fmt.Printf("Unsaved article %s\n", args[0])
			} else {
				fmt.Printf("Article %s was not saved\n", args[0])
			}
			return nil
		},
	}
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <article-id>",
		Short: "Mark an article as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.MarkViewed(args[0]); err != nil {
				return fmt.Errorf("failed to mark article as read: %w", err)
			}
			fmt.Printf("Marked article %s as read\n", args[0])
			return nil
		},
	}
}

func unreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread <article-id>",
		Short: "Mark an article as unread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.MarkUnread(args[0]); err != nil {
				return fmt.Errorf("failed to mark article as unread: %w", err)
			}
			fmt.Printf("Marked article %s as unread\n", args[0])
			return nil
		},
	}
}

func tagCmd() *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "tag <article-id> <tag>",
		Short: "Tag an article (tagging also saves it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			articleID, name := args[0], args[1]
			if remove {
				removed, err := store.RemoveTag(articleID, name)
				if err != nil {
					return err
				}
				if removed {
					if _, err := store.CleanupOrphanTags(); err != nil {
						return err
					}
					fmt.Printf("Removed tag %q from article %s\n", name, articleID)
				} else {
					fmt.Printf("Article %s did not carry tag %q\n", articleID, name)
				}
				return nil
			}

			added, err := store.AddTag(articleID, name)
			if err != nil {
				return err
			}
			if added {
				fmt.Printf("Tagged article %s with %q\n", articleID, name)
			} else {
				fmt.Printf("Article %s already carried tag %q\n", articleID, name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the tag instead of adding it")
	return cmd
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List all tags with article counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tags, err := store.ListAllTags()
			if err != nil {
				return err
			}
			return formatter.OutputTagList(tags)
		},
	}
}

func notesCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "notes <article-id> [path]",
		Short: "Show, set, or clear an article's notes file (setting also saves it)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			articleID := args[0]
			if clear {
				cleared, err := store.ClearNotesPath(articleID)
				if err != nil {
					return err
				}
				if cleared {
					fmt.Printf("Cleared notes for article %s\n", articleID)
				} else {
					fmt.Printf("Article %s had no notes\n", articleID)
				}
				return nil
			}

			if len(args) == 2 {
				if err := store.SetNotesPath(articleID, args[1]); err != nil {
					return err
				}
				fmt.Printf("Attached notes %s to article %s\n", args[1], articleID)
				return nil
			}

			path, err := store.GetNotesPath(articleID)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Printf("Article %s has no notes\n", articleID)
			} else {
				fmt.Println(path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the notes reference")
	return cmd
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete unsaved articles older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			if cfg.FeedRetentionDays <= 0 {
				formatter.Warning("feed retention is disabled; nothing to purge")
				return nil
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.PurgeOldUnsaved(cfg.FeedRetentionDays)
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			return formatter.OutputPurgeResult(deleted, cfg.FeedRetentionDays)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show article store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.GetStats()
			if err != nil {
				return err
			}
			return formatter.OutputStats(stats)
		},
	}
}

func migrateCmd() *cobra.Command {
	var savedPath, viewedPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Import saved/viewed state from the old text-file format",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.ImportLegacyTextFiles(savedPath, viewedPath)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			return formatter.OutputImportResult(stats)
		},
	}
	cmd.Flags().StringVar(&savedPath, "saved", "saved_articles.txt", "path to the legacy saved-articles file")
	cmd.Flags().StringVar(&viewedPath, "viewed", "viewed_articles.txt", "path to the legacy viewed-articles file")
	return cmd
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = "./config/config.yaml"
			}

			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			data, err := yaml.Marshal(storage.DefaultConfig())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
