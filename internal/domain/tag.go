package domain

// Tag is a user-owned label for links.
//
// Name keeps the casing the user typed; identity is case-insensitive. No two
// tags for the same user may have names equal under case folding. That rule is
// enforced locally before any mutation and re-checked against the server
// during sync.
type Tag struct {
	Syncable
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// LinkTag is the link↔tag association row. It exists for referential
// completeness with the server schema; reads go through the denormalized
// Link.Tags slice instead.
type LinkTag struct {
	Syncable
	LinkID string `json:"link_id"`
	TagID  string `json:"tag_id"`
}

// LinkTagKey builds the composite primary key for a LinkTag row.
func LinkTagKey(linkID, tagID string) string {
	return linkID + ":" + tagID
}

// NewLinkTag creates an association row with initialized timestamps.
func NewLinkTag(linkID, tagID string) *LinkTag {
	lt := &LinkTag{
		LinkID: linkID,
		TagID:  tagID,
	}
	lt.ID = LinkTagKey(linkID, tagID)
	lt.InitTimestamps()
	return lt
}
