// Package cms reads published content from the Payload CMS REST API.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dgallion1/docsite/internal/content"
	"github.com/dgallion1/docsite/internal/richtext"
)

// Client communicates with the CMS HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger

	maxRetries int
	backoff    func(attempt int) time.Duration
}

func NewClient(baseURL, apiKey string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:        log,
		maxRetries: MaxRetries,
		backoff:    Backoff,
	}
}

// id accepts the numeric ids of relational adapters and the string ids of
// document databases.
type id string

func (i *id) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*i = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = id(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*i = id(n.String())
	return nil
}

// ref is a relationship field: either a bare id or, when populated, an
// object carrying one.
type ref string

func (r *ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			ID id `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return fmt.Errorf("relationship: %w", err)
		}
		*r = ref(obj.ID)
		return nil
	}
	var i id
	if err := i.UnmarshalJSON(b); err != nil {
		return err
	}
	*r = ref(i)
	return nil
}

type categoryResponse struct {
	ID          id     `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type docResponse struct {
	ID          id              `json:"id"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    ref             `json:"category"`
	Parent      ref             `json:"parent"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Content     json.RawMessage `json:"content"`
}

// findResponse is the envelope of a collection find.
type findResponse[T any] struct {
	Docs []T `json:"docs"`
}

func (c *Client) ListCategories(ctx context.Context) ([]content.Category, error) {
	q := url.Values{}
	q.Set("limit", "0")
	q.Set("depth", "0")
	q.Set("pagination", "false")
	q.Set("sort", "id")

	var resp findResponse[categoryResponse]
	if err := c.find(ctx, "categories", q, &resp); err != nil {
		return nil, err
	}
	out := make([]content.Category, 0, len(resp.Docs))
	for _, r := range resp.Docs {
		out = append(out, r.toCategory())
	}
	return out, nil
}

func (c *Client) CategoryBySlug(ctx context.Context, slug string) (content.Category, error) {
	q := url.Values{}
	q.Set("where[slug][equals]", slug)
	q.Set("limit", "1")
	q.Set("depth", "0")
	q.Set("pagination", "false")

	var resp findResponse[categoryResponse]
	if err := c.find(ctx, "categories", q, &resp); err != nil {
		return content.Category{}, err
	}
	if len(resp.Docs) == 0 {
		return content.Category{}, content.ErrNotFound
	}
	return resp.Docs[0].toCategory(), nil
}

func (c *Client) DocsInCategory(ctx context.Context, categoryID string, limit int) ([]content.Document, error) {
	q := url.Values{}
	q.Set("where[category][equals]", categoryID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("depth", "0")
	q.Set("pagination", "false")
	q.Set("sort", "id")

	var resp findResponse[docResponse]
	if err := c.find(ctx, "docs", q, &resp); err != nil {
		return nil, err
	}
	out := make([]content.Document, 0, len(resp.Docs))
	for _, r := range resp.Docs {
		out = append(out, r.toDocument(c.log))
	}
	content.SortDocuments(out)
	return out, nil
}

// find runs a collection query, retrying transient failures.
func (c *Client) find(ctx context.Context, collection string, q url.Values, out any) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = c.get(ctx, "/api/"+collection+"?"+q.Encode(), out)
		if err == nil || !IsRetryable(err) || attempt >= c.maxRetries {
			return err
		}
		wait := c.backoff(attempt)
		c.log.Warn("cms request failed, retrying",
			"collection", collection,
			"attempt", attempt+1,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "users API-Key "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("get %s: %w", path, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("get %s: status %d: %s", path, resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &RetryableError{Err: err}
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (r categoryResponse) toCategory() content.Category {
	return content.Category{
		ID:          string(r.ID),
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
	}
}

func (r docResponse) toDocument(log *slog.Logger) content.Document {
	doc := content.Document{
		ID:          string(r.ID),
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
		CategoryID:  string(r.Category),
		ParentID:    string(r.Parent),
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Content) > 0 {
		root, err := richtext.Decode(r.Content)
		if err != nil {
			log.Warn("undecodable document content", "doc_id", doc.ID, "error", err)
		}
		doc.Content = root
	}
	return doc
}
