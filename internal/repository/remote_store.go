package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nicnocquee/bluesky-later/internal/models"
)

// remoteStore implements PostStore over the CRUD surface of a hosted
// instance, so a worker process can run against a store it does not own.
// Transport failures surface the HTTP status text; a missing credentials
// resource (404) is reported as absence, not as an error.
type remoteStore struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteStore(baseURL string) PostStore {
	return &remoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *remoteStore) GetPendingDuePosts(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	if err := s.do(ctx, http.MethodGet, "/api/posts/due", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *remoteStore) ClaimDuePosts(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	if err := s.do(ctx, http.MethodPost, "/api/posts/claim", claimRequest{}, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *remoteStore) ClaimPost(ctx context.Context, id int64) (*models.Post, error) {
	var posts []*models.Post
	if err := s.do(ctx, http.MethodPost, "/api/posts/claim", claimRequest{ID: id}, &posts); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return posts[0], nil
}

func (s *remoteStore) GetAllPosts(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	if err := s.do(ctx, http.MethodGet, "/api/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *remoteStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil, &post)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *remoteStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	var created models.Post
	if err := s.do(ctx, http.MethodPost, "/api/posts", post, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *remoteStore) UpdatePost(ctx context.Context, id int64, changes *PostChanges) error {
	return s.do(ctx, http.MethodPatch, fmt.Sprintf("/api/posts/%d", id), changes, nil)
}

func (s *remoteStore) DeletePost(ctx context.Context, id int64) error {
	return s.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil, nil)
}

func (s *remoteStore) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	var creds models.Credentials
	err := s.do(ctx, http.MethodGet, "/api/credentials", nil, &creds)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

func (s *remoteStore) SetCredentials(ctx context.Context, identifier, password string) error {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}
	return s.do(ctx, http.MethodPost, "/api/credentials", body, nil)
}

func (s *remoteStore) DeleteCredentials(ctx context.Context) error {
	return s.do(ctx, http.MethodDelete, "/api/credentials", nil, nil)
}

type claimRequest struct {
	ID int64 `json:"id,omitempty"`
}

var errNotFound = fmt.Errorf("not found")

func (s *remoteStore) do(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote store: %s: %s", resp.Status, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w body=%q", err, string(respBody))
		}
	}
	return nil
}
