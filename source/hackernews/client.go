package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxBodySize bounds a single API response.
const maxBodySize = 4 * 1024 * 1024

// Item is a Hacker News item as served by the Firebase API.
type Item struct {
	ID      int64   `json:"id"`
	Type    string  `json:"type"`
	By      string  `json:"by"`
	Time    int64   `json:"time"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Text    string  `json:"text"`
	Score   int     `json:"score"`
	Kids    []int64 `json:"kids"`
	Deleted bool    `json:"deleted"`
	Dead    bool    `json:"dead"`
}

// Client reads the Hacker News Firebase API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient}
}

// StoryIDs returns the ranked IDs for list (best, top, new).
func (c *Client) StoryIDs(ctx context.Context, list string) ([]int64, error) {
	var ids []int64
	if err := c.get(ctx, fmt.Sprintf("/%sstories.json", list), &ids); err != nil {
		return nil, fmt.Errorf("%s stories: %w", list, err)
	}
	return ids, nil
}

// Item returns one item. A null body (deleted or unknown ID) yields nil, nil.
func (c *Client) Item(ctx context.Context, id int64) (*Item, error) {
	var item *Item
	if err := c.get(ctx, fmt.Sprintf("/item/%d.json", id), &item); err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}
	return item, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
