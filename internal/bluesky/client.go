package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultPDS = "https://bsky.social"

// Client is a minimal BlueSky/AT Protocol API client covering the calls a
// post scheduler needs: session creation, handle resolution, blob upload and
// post record creation.
type Client struct {
	pds        string
	httpClient *http.Client
}

// Session holds the access token returned by createSession. One session is
// created per publishing run and passed to every authenticated call.
type Session struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

// NewClient creates a new BlueSky API client. If pds is empty, it defaults to
// https://bsky.social.
func NewClient(pds string) *Client {
	if pds == "" {
		pds = defaultPDS
	}
	return &Client{
		pds: pds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateSession authenticates with the PDS. Use an App Password, not the
// account password.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var session Session
	if err := c.post(ctx, "/xrpc/com.atproto.server.createSession", "", body, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// ResolveHandle resolves a handle (e.g. alice.bsky.social) to its DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	endpoint := c.pds + "/xrpc/com.atproto.identity.resolveHandle?handle=" + url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return result.DID, nil
}

// UploadBlob uploads raw image bytes as a blob and returns a reference.
// The blob is garbage-collected by the PDS if not referenced in a record
// within a time window.
func (c *Client) UploadBlob(ctx context.Context, session *Session, data []byte, mimeType string) (*BlobRef, error) {
	if session == nil || session.AccessJwt == "" {
		return nil, fmt.Errorf("not authenticated: create a session first")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/com.atproto.repo.uploadBlob", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Authorization", "Bearer "+session.AccessJwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result uploadBlobResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &result.Blob, nil
}

// CreateRecord submits a post record to the authenticated user's repo via
// com.atproto.repo.createRecord.
func (c *Client) CreateRecord(ctx context.Context, session *Session, record *PostRecord) (*CreateRecordResponse, error) {
	if session == nil || session.AccessJwt == "" {
		return nil, fmt.Errorf("not authenticated: create a session first")
	}

	body := createRecordRequest{
		Repo:       session.DID,
		Collection: RecordTypePost,
		Record:     record,
	}

	var resp CreateRecordResponse
	if err := c.post(ctx, "/xrpc/com.atproto.repo.createRecord", session.AccessJwt, body, &resp); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path, accessJwt string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// CreateRecordResponse identifies the created record.
type CreateRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type createRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}

type uploadBlobResponse struct {
	Blob BlobRef `json:"blob"`
}
