package storage

// FilterSpec is a named saved-search: a free-text query, a set of arXiv
// categories, or both. Matching articles are fetched and listed together
// under the filter's name.
type FilterSpec struct {
	Categories []string `yaml:"categories,omitempty"`
	Query      string   `yaml:"query,omitempty"`
}

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Fetch struct {
		ThresholdHours int `yaml:"threshold_hours"`
		MaxResults     int `yaml:"max_results"`
	} `yaml:"fetch"`

	// Articles older than this many days are hidden from feed views
	// unless unread, and are removed by the purge sweep unless saved.
	FeedRetentionDays int `yaml:"feed_retention_days"`

	// Display name -> arXiv category code.
	Categories map[string]string `yaml:"categories"`

	Filters map[string]FilterSpec `yaml:"filters"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./artui.db"
	cfg.Fetch.ThresholdHours = 6
	cfg.Fetch.MaxResults = 200
	cfg.FeedRetentionDays = 30
	cfg.Categories = map[string]string{
		"HEP Experiments":     "hep-ex",
		"HEP Theory":          "hep-th",
		"HEP Phenomenology":   "hep-ph",
		"Nuclear Experiments": "nucl-ex",
	}
	cfg.Filters = map[string]FilterSpec{
		"ALICE": {
			Categories: []string{"hep-ex", "hep-ph"},
			Query:      "ALICE",
		},
		"Heavy-Ion Physics": {
			Categories: []string{"hep-ex", "hep-ph"},
			Query:      "quark gluon plasma",
		},
	}
	return cfg
}
