package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/post-speech-service/internal/core"
)

// ErrUnexpectedStatus indicates a response status the client does not handle.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client calls the intake API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the API served at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// CreatePost submits text for conversion and returns the stored post.
func (c *Client) CreatePost(ctx context.Context, text, voice string) (*core.Post, error) {
	body, err := json.Marshal(CreatePostRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var post core.Post

	err = c.do(ctx, http.MethodPost, "/posts", body, http.StatusCreated, &post)
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// GetPost fetches one post. A missing post yields core.ErrPostNotFound.
func (c *Client) GetPost(ctx context.Context, id string) (*core.Post, error) {
	var post core.Post

	err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, http.StatusOK, &post)
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// ListPosts fetches every post.
func (c *Client) ListPosts(ctx context.Context) ([]*core.Post, error) {
	var posts []*core.Post

	err := c.do(ctx, http.MethodGet, "/posts", nil, http.StatusOK, &posts)
	if err != nil {
		return nil, err
	}

	return posts, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, wantStatus int, target any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == wantStatus:
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return fmt.Errorf("%w: %s", core.ErrPostNotFound, path)
	default:
		var message MessageResponse

		_ = json.Unmarshal(data, &message)

		return fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, message.Message)
	}

	err = json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
