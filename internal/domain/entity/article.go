package entity

import (
	"strings"
	"time"
)

// Article is one published item belonging to a Source.
// PublishedAt is epoch seconds; CreatedAt and UpdatedAt are row timestamps
// maintained by the persistence layer.
type Article struct {
	ID          string
	SourceID    string
	Title       string
	ImageURL    string
	PublishedAt int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Published returns PublishedAt as a time.Time.
func (a *Article) Published() time.Time {
	return time.Unix(a.PublishedAt, 0)
}

// Validate checks the invariants every stored article must satisfy.
func (a *Article) Validate() error {
	if err := ValidateID("id", a.ID); err != nil {
		return err
	}
	if err := ValidateID("sourceId", a.SourceID); err != nil {
		return err
	}
	if a.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if a.PublishedAt < 0 {
		return &ValidationError{Field: "publishedAt", Message: "must not be negative"}
	}
	return nil
}

// ArticleURL derives the canonical page URL of an article from the content
// origin base, e.g. "https://mp.weixin.qq.com/s/" + id.
func ArticleURL(base, id string) string {
	if base == "" {
		return id
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + id
}
