// client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"blamer/internal/blame"
)

// Client talks to the blame HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, wantStatus int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fileQuery(fileName string) string {
	return "/api/blames/file?name=" + url.QueryEscape(fileName)
}

func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	var files []string
	if err := c.do(ctx, http.MethodGet, "/api/blames", nil, http.StatusOK, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Client) GetBlame(ctx context.Context, fileName string) (*blame.FileBlame, error) {
	fb := blame.New("")
	if err := c.do(ctx, http.MethodGet, fileQuery(fileName), nil, http.StatusOK, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// MergeBlame sends fb to the server and returns the merged record.
func (c *Client) MergeBlame(ctx context.Context, fb *blame.FileBlame) (*blame.FileBlame, error) {
	data, err := json.Marshal(fb)
	if err != nil {
		return nil, err
	}

	merged := blame.New("")
	if err := c.do(ctx, http.MethodPut, "/api/blames/file", bytes.NewReader(data), http.StatusOK, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// PutBlame replaces the server's record for fb's file with fb.
func (c *Client) PutBlame(ctx context.Context, fb *blame.FileBlame) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/api/blames/file?replace=true", bytes.NewReader(data), http.StatusOK, nil)
}

// AllBlames fetches every record stored on the server.
func (c *Client) AllBlames(ctx context.Context) (*blame.Blames, error) {
	var records []*blame.FileBlame
	if err := c.do(ctx, http.MethodGet, "/api/blames/all", nil, http.StatusOK, &records); err != nil {
		return nil, err
	}

	blames := blame.NewBlames()
	for _, fb := range records {
		if err := blames.Add(fb); err != nil {
			return nil, err
		}
	}
	return blames, nil
}

func (c *Client) DeleteBlame(ctx context.Context, fileName string) error {
	return c.do(ctx, http.MethodDelete, fileQuery(fileName), nil, http.StatusNoContent, nil)
}
