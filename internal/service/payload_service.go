package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nicnocquee/bluesky-later/internal/bluesky"
	"github.com/nicnocquee/bluesky-later/internal/models"
)

// ErrUnauthenticated is returned when payload construction is attempted
// without a session. Checked before any network call.
var ErrUnauthenticated = errors.New("unauthenticated")

// PayloadService turns a stored post into the app.bsky.feed.post record the
// PDS expects: rich-text facets over the content, plus at most one embed.
// When both a url and an image are present the link card wins and the image
// is dropped from the payload.
type PayloadService interface {
	Build(ctx context.Context, post *models.Post, session *bluesky.Session) (*bluesky.PostRecord, error)
}

type payloadService struct {
	pds    PDSClient
	cards  CardService
	assets AssetService
}

func NewPayloadService(pds PDSClient, cards CardService, assets AssetService) PayloadService {
	return &payloadService{
		pds:    pds,
		cards:  cards,
		assets: assets,
	}
}

func (s *payloadService) Build(ctx context.Context, post *models.Post, session *bluesky.Session) (*bluesky.PostRecord, error) {
	if session == nil || session.AccessJwt == "" {
		return nil, ErrUnauthenticated
	}

	facets, err := bluesky.DetectFacets(ctx, post.Content, s.pds.ResolveHandle)
	if err != nil {
		return nil, fmt.Errorf("detect facets: %w", err)
	}

	record := &bluesky.PostRecord{
		Type:   bluesky.RecordTypePost,
		Text:   post.Content,
		Facets: facets,
		// The delivered post carries the intended schedule, not the wall
		// clock at send time.
		CreatedAt: post.ScheduledFor.UTC().Format(time.RFC3339),
	}

	switch {
	case post.URL != "":
		record.Embed = s.buildExternalEmbed(ctx, post.URL, session)
	case post.Image != nil:
		embed, err := s.buildImageEmbed(ctx, post.Image, session)
		if err != nil {
			return nil, err
		}
		record.Embed = embed
	}

	return record, nil
}

// buildExternalEmbed resolves the link card and, when a thumbnail exists,
// uploads it as a blob. Thumbnail failures degrade to a text-only card.
func (s *payloadService) buildExternalEmbed(ctx context.Context, pageURL string, session *bluesky.Session) *bluesky.ExternalEmbed {
	card := s.cards.ResolveCard(ctx, pageURL)

	var thumb *bluesky.BlobRef
	if card.ImageURL != "" {
		data, mimeType, err := s.cards.FetchImage(ctx, card.ImageURL)
		if err != nil {
			slog.Info("card thumbnail fetch failed, embedding text-only card", "url", pageURL, "error", err.Error())
		} else {
			blob, err := s.pds.UploadBlob(ctx, session, data, mimeType)
			if err != nil {
				slog.Info("card thumbnail upload failed, embedding text-only card", "url", pageURL, "error", err.Error())
			} else {
				thumb = blob
			}
		}
	}

	return bluesky.NewExternalEmbed(card.URI, card.Title, card.Description, thumb)
}

// buildImageEmbed reuses the already-uploaded blob reference when present,
// otherwise pulls the stored bytes from the asset bucket and uploads them.
// Unlike card thumbnails, a broken image embed fails the post.
func (s *payloadService) buildImageEmbed(ctx context.Context, image *models.PostImage, session *bluesky.Session) (*bluesky.ImagesEmbed, error) {
	blob := image.Blob
	if blob == nil {
		if image.AssetKey == "" {
			return nil, errors.New("image has neither an uploaded blob nor a stored asset")
		}

		data, mimeType, err := s.assets.Fetch(ctx, image.AssetKey)
		if err != nil {
			return nil, fmt.Errorf("fetch image asset: %w", err)
		}

		blob, err = s.pds.UploadBlob(ctx, session, data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("upload image blob: %w", err)
		}
	}

	return bluesky.NewImagesEmbed(image.Alt, blob), nil
}
