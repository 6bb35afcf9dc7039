package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
)

// Tag Operations

// CreateTag creates a tag on the server and returns the stored record.
//
// Some deployments deduplicate by name and answer with an already existing
// tag; callers compare the returned id with the one they sent and remap
// local references when they differ. The sync engine does not rely on this:
// it checks ListTags before issuing a create.
func (c *Client) CreateTag(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/tags", tag)
	if err != nil {
		return nil, err
	}

	var created domain.Tag
	if err := decode(data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTag replaces a tag on the server. Last write wins.
func (c *Client) UpdateTag(ctx context.Context, tag *domain.Tag) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/tags/"+url.PathEscape(tag.ID), tag)
	return err
}

// DeleteTag removes a tag on the server.
func (c *Client) DeleteTag(ctx context.Context, tagID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/tags/"+url.PathEscape(tagID), nil)
	return err
}

// ListTags fetches all of the authenticated user's tags.
// Used by the read layer when serving online reads.
func (c *Client) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/tags", nil)
	if err != nil {
		return nil, err
	}

	var tags []*domain.Tag
	if err := decode(data, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
