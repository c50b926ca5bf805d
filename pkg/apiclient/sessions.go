package apiclient

import (
	"context"
	"net/url"

	"github.com/marmos91/dittopad/pkg/api/handlers"
)

// Sessions lists the usernames currently held.
func (c *Client) Sessions(ctx context.Context) (*handlers.SessionsResponse, error) {
	var resp handlers.SessionsResponse
	if _, err := c.get(ctx, "/api/v1/sessions", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserFiles lists the files saved by username.
func (c *Client) UserFiles(ctx context.Context, username string) (*handlers.FilesResponse, error) {
	var resp handlers.FilesResponse
	if _, err := c.get(ctx, "/api/v1/users/"+url.PathEscape(username)+"/files", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
