package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/h2non/filetype"
	"github.com/nicnocquee/bluesky-later/internal/transfer"
)

// CardService resolves link-preview metadata and fetches thumbnail bytes.
// Both operations degrade instead of failing the post: metadata falls back
// to the bare URL, a missing thumbnail leaves the card text-only.
type CardService interface {
	ResolveCard(ctx context.Context, pageURL string) *transfer.LinkCard
	FetchImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

type cardService struct {
	cardServiceURL string
	imageProxyURL  string
	httpClient     *http.Client
}

func NewCardService(cardServiceURL, imageProxyURL string) CardService {
	return &cardService{
		cardServiceURL: cardServiceURL,
		imageProxyURL:  imageProxyURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ResolveCard queries the metadata service for a link preview. Every failure
// path returns the degraded card {title: url, description: ""}.
func (s *cardService) ResolveCard(ctx context.Context, pageURL string) *transfer.LinkCard {
	fallback := &transfer.LinkCard{URI: pageURL, Title: pageURL, Description: ""}
	if s.cardServiceURL == "" {
		return fallback
	}

	endpoint := s.cardServiceURL + "?url=" + url.QueryEscape(pageURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fallback
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Info("link metadata fetch failed", "url", pageURL, "error", err.Error())
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Info("link metadata fetch failed", "url", pageURL, "status", resp.StatusCode)
		return fallback
	}

	var body transfer.CardServiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Info("link metadata decode failed", "url", pageURL, "error", err.Error())
		return fallback
	}
	if body.Error != "" {
		return fallback
	}

	card := &transfer.LinkCard{
		URI:         pageURL,
		Title:       body.Title,
		Description: body.Description,
		ImageURL:    body.Image,
	}
	if card.Title == "" {
		card.Title = pageURL
	}
	return card
}

// FetchImage retrieves thumbnail bytes, going through the CORS relay when one
// is configured, and sniffs the MIME type from the content.
func (s *cardService) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	endpoint := imageURL
	if s.imageProxyURL != "" {
		endpoint = s.imageProxyURL + "?url=" + url.QueryEscape(imageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		mimeType = kind.MIME.Value
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return data, mimeType, nil
}
