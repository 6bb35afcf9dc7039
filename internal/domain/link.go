package domain

import "strings"

// Link is the local replica of a saved bookmark.
//
// Tags holds tag names (not ids), denormalized onto the link so offline tag
// queries never need a join. Tag renames and deletes cascade into this slice
// for every link that references the tag.
type Link struct {
	Syncable
	UserID      string   `json:"user_id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	IsFavorite  bool     `json:"is_favorite"`
}

// HasTag reports whether the link carries the tag name.
// Comparison is case-insensitive, matching tag identity rules.
func (l *Link) HasTag(name string) bool {
	for _, t := range l.Tags {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// AddTag appends a tag name if not already present.
// Returns true if the slice changed.
func (l *Link) AddTag(name string) bool {
	if l.HasTag(name) {
		return false
	}
	l.Tags = append(l.Tags, name)
	return true
}

// RenameTag rewrites every occurrence of oldName to newName, deduplicating
// if the link already carried newName. Returns true if the slice changed.
func (l *Link) RenameTag(oldName, newName string) bool {
	if !l.HasTag(oldName) {
		return false
	}
	hadNew := l.HasTag(newName)

	out := l.Tags[:0]
	for _, t := range l.Tags {
		if strings.EqualFold(t, oldName) {
			continue
		}
		out = append(out, t)
	}
	if !hadNew {
		out = append(out, newName)
	}
	l.Tags = out
	return true
}

// RemoveTag deletes a tag name from the link. Returns true if the slice changed.
func (l *Link) RemoveTag(name string) bool {
	if !l.HasTag(name) {
		return false
	}
	out := l.Tags[:0]
	for _, t := range l.Tags {
		if strings.EqualFold(t, name) {
			continue
		}
		out = append(out, t)
	}
	l.Tags = out
	return true
}
