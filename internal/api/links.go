package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
)

// Link Operations

// CreateLink creates a link on the server. The client-generated id is kept,
// so replaying the same create is idempotent server-side.
func (c *Client) CreateLink(ctx context.Context, link *domain.Link) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/links", link)
	return err
}

// UpdateLink replaces a link on the server. Last write wins.
func (c *Client) UpdateLink(ctx context.Context, link *domain.Link) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/links/"+url.PathEscape(link.ID), link)
	return err
}

// DeleteLink removes a link on the server.
func (c *Client) DeleteLink(ctx context.Context, linkID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/links/"+url.PathEscape(linkID), nil)
	return err
}

// ListLinks fetches all of the authenticated user's links.
// Used by the read layer when serving online reads.
func (c *Client) ListLinks(ctx context.Context) ([]*domain.Link, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/links", nil)
	if err != nil {
		return nil, err
	}

	var links []*domain.Link
	if err := decode(data, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// CreateLinkTag creates a link-tag association on the server.
func (c *Client) CreateLinkTag(ctx context.Context, lt *domain.LinkTag) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/link-tags", lt)
	return err
}

// DeleteLinkTag removes a link-tag association on the server.
func (c *Client) DeleteLinkTag(ctx context.Context, linkID, tagID string) error {
	path := "/link-tags/" + url.PathEscape(linkID) + "/" + url.PathEscape(tagID)
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	return err
}
