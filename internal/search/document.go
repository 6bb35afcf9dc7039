// Package search provides full-text search over the local link replica
// using Bleve. The index is a derived structure: it can always be rebuilt
// from the store, so index failures never block writes.
package search

import (
	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/util"
)

// LinkDocument is the document structure for the Bleve index.
type LinkDocument struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Favorite    bool     `json:"favorite"`

	// Timestamps for sorting. Unix millis.
	CreatedAt    int64 `json:"created_at"`
	LastModified int64 `json:"last_modified"`
}

// NewLinkDocument builds a search document from a link.
func NewLinkDocument(link *domain.Link) *LinkDocument {
	// Tags are indexed in folded form so filters are case-insensitive under
	// the keyword analyzer. Display casing lives in the store, not here.
	tags := make([]string, 0, len(link.Tags))
	for _, t := range link.Tags {
		tags = append(tags, util.FoldTagName(t))
	}

	doc := &LinkDocument{
		ID:           link.ID,
		UserID:       link.UserID,
		Title:        link.Title,
		URL:          link.URL,
		Tags:         tags,
		Favorite:     link.IsFavorite,
		CreatedAt:    link.CreatedAt.UnixMilli(),
		LastModified: link.LastModified.UnixMilli(),
	}
	if link.Description != nil {
		doc.Description = *link.Description
	}
	return doc
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *LinkDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":            d.ID,
		"user_id":       d.UserID,
		"title":         d.Title,
		"url":           d.URL,
		"favorite":      d.Favorite,
		"created_at":    d.CreatedAt,
		"last_modified": d.LastModified,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}
