package storage

const Schema = `
CREATE TABLE IF NOT EXISTS articles (
    id TEXT PRIMARY KEY,
    entry_url TEXT NOT NULL,
    title TEXT NOT NULL,
    authors TEXT NOT NULL,
    summary TEXT NOT NULL,
    categories TEXT NOT NULL,
    published_date DATETIME NOT NULL,
    pdf_url TEXT NOT NULL,
    citation_count INTEGER NOT NULL DEFAULT 0,
    citations_updated_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    notes_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_date DESC);

CREATE TABLE IF NOT EXISTS article_status (
    article_id TEXT PRIMARY KEY,
    is_saved BOOLEAN NOT NULL DEFAULT 0,
    is_viewed BOOLEAN NOT NULL DEFAULT 0,
    saved_at DATETIME,
    viewed_at DATETIME,
    FOREIGN KEY (article_id) REFERENCES articles(id)
);

CREATE INDEX IF NOT EXISTS idx_status_saved ON article_status(is_saved);
CREATE INDEX IF NOT EXISTS idx_status_viewed ON article_status(is_viewed);

CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);

CREATE TABLE IF NOT EXISTS article_tags (
    article_id TEXT NOT NULL,
    tag_id INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (article_id, tag_id),
    FOREIGN KEY (article_id) REFERENCES articles(id),
    FOREIGN KEY (tag_id) REFERENCES tags(id)
);

CREATE INDEX IF NOT EXISTS idx_article_tags_article ON article_tags(article_id);
CREATE INDEX IF NOT EXISTS idx_article_tags_tag ON article_tags(tag_id);

CREATE TABLE IF NOT EXISTS fetched_categories (
    category_key TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    last_fetched DATETIME NOT NULL,
    article_count INTEGER NOT NULL DEFAULT 0
);
`
