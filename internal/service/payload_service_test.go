package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nicnocquee/bluesky-later/internal/bluesky"
	"github.com/nicnocquee/bluesky-later/internal/models"
	"github.com/nicnocquee/bluesky-later/internal/transfer"
)

var testSession = &bluesky.Session{AccessJwt: "jwt", DID: "did:plc:test"}

func testBlob() *bluesky.BlobRef {
	blob := &bluesky.BlobRef{Type: "blob", MimeType: "image/png", Size: 3}
	blob.Ref.Link = "bafyexisting"
	return blob
}

func TestBuild_RequiresSession(t *testing.T) {
	t.Parallel()

	payloads := NewPayloadService(&fakePDS{}, &fakeCards{}, &fakeAssets{})
	post := &models.Post{Content: "hi", ScheduledFor: time.Now()}

	if _, err := payloads.Build(context.Background(), post, nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := payloads.Build(context.Background(), post, &bluesky.Session{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty token, got %v", err)
	}
}

func TestBuild_CreatedAtIsScheduledTime(t *testing.T) {
	t.Parallel()

	scheduled := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)
	payloads := NewPayloadService(&fakePDS{}, &fakeCards{}, &fakeAssets{})

	record, err := payloads.Build(context.Background(), &models.Post{
		Content:      "plain post",
		ScheduledFor: scheduled,
	}, testSession)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if record.CreatedAt != "2026-09-01T15:30:00Z" {
		t.Fatalf("expected createdAt to carry the scheduled time, got %q", record.CreatedAt)
	}
	if record.Embed != nil {
		t.Fatalf("expected no embed for a plain post, got %+v", record.Embed)
	}
	if record.Type != bluesky.RecordTypePost || record.Text != "plain post" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestBuild_URLWinsOverImage(t *testing.T) {
	t.Parallel()

	cards := &fakeCards{card: &transfer.LinkCard{
		URI:         "https://example.com",
		Title:       "Example",
		Description: "A page",
	}}
	payloads := NewPayloadService(&fakePDS{}, cards, &fakeAssets{})

	record, err := payloads.Build(context.Background(), &models.Post{
		Content:      "both url and image",
		ScheduledFor: time.Now(),
		URL:          "https://example.com",
		Image:        &models.PostImage{Blob: testBlob()},
	}, testSession)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	embed, ok := record.Embed.(*bluesky.ExternalEmbed)
	if !ok {
		t.Fatalf("expected an external embed, got %T", record.Embed)
	}
	if embed.External.URI != "https://example.com" || embed.External.Title != "Example" {
		t.Fatalf("unexpected card %+v", embed.External)
	}
}

func TestBuild_DegradedCardOnMetadataFailure(t *testing.T) {
	t.Parallel()

	// fakeCards without a canned card returns the fallback, as the real
	// service does when the metadata endpoint is down.
	payloads := NewPayloadService(&fakePDS{}, &fakeCards{}, &fakeAssets{})

	record, err := payloads.Build(context.Background(), &models.Post{
		Content:      "link only",
		ScheduledFor: time.Now(),
		URL:          "https://x.test",
	}, testSession)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	embed := record.Embed.(*bluesky.ExternalEmbed)
	if embed.External.URI != "https://x.test" || embed.External.Title != "https://x.test" || embed.External.Description != "" {
		t.Fatalf("expected degraded card, got %+v", embed.External)
	}
}

func TestBuild_ThumbnailFailureDegradesToTextOnlyCard(t *testing.T) {
	t.Parallel()

	cards := &fakeCards{
		card: &transfer.LinkCard{
			URI:      "https://example.com",
			Title:    "Example",
			ImageURL: "https://example.com/og.png",
		},
		imageErr: errors.New("image unreachable"),
	}
	payloads := NewPayloadService(&fakePDS{}, cards, &fakeAssets{})

	record, err := payloads.Build(context.Background(), &models.Post{
		Content:      "link",
		ScheduledFor: time.Now(),
		URL:          "https://example.com",
	}, testSession)
	if err != nil {
		t.Fatalf("Build() error, expected a text-only card: %v", err)
	}

	embed := record.Embed.(*bluesky.ExternalEmbed)
	if embed.External.Thumb != nil {
		t.Fatalf("expected no thumb after fetch failure, got %+v", embed.External.Thumb)
	}
}

func TestBuild_ImageEmbedReusesBlob(t *testing.T) {
	t.Parallel()

	pds := &fakePDS{}
	payloads := NewPayloadService(pds, &fakeCards{}, &fakeAssets{})

	record, err := payloads.Build(context.Background(), &models.Post{
		Content:      "picture",
		ScheduledFor: time.Now(),
		Image:        &models.PostImage{Blob: testBlob(), Alt: "a cat"},
	}, testSession)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	embed, ok := record.Embed.(*bluesky.ImagesEmbed)
	if !ok {
		t.Fatalf("expected an images embed, got %T", record.Embed)
	}
	if len(embed.Images) != 1 || embed.Images[0].Image.Ref.Link != "bafyexisting" {
		t.Fatalf("expected the stored blob to be reused, got %+v", embed.Images)
	}
	if embed.Images[0].Alt != "a cat" {
		t.Fatalf("unexpected alt %q", embed.Images[0].Alt)
	}
	if len(pds.uploaded) != 0 {
		t.Fatalf("expected no re-upload of an existing blob")
	}
}

func TestBuild_ImageEmbedUploadsStoredAsset(t *testing.T) {
	t.Parallel()

	pds := &fakePDS{}
	assets := &fakeAssets{objects: map[string][]byte{"asset-1": {9, 9, 9}}}
	payloads := NewPayloadService(pds, &fakeCards{}, assets)

	record, err := payloads.Build(context.Background(), &models.Post{
		Content:      "picture",
		ScheduledFor: time.Now(),
		Image:        &models.PostImage{AssetKey: "asset-1"},
	}, testSession)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	embed := record.Embed.(*bluesky.ImagesEmbed)
	if embed.Images[0].Alt != "" {
		t.Fatalf("expected empty alt when none supplied, got %q", embed.Images[0].Alt)
	}
	if len(pds.uploaded) != 1 {
		t.Fatalf("expected the asset bytes to be uploaded once, got %d uploads", len(pds.uploaded))
	}
}

func TestBuild_ImageFailureIsFatal(t *testing.T) {
	t.Parallel()

	assets := &fakeAssets{fetchErr: errors.New("bucket unreachable")}
	payloads := NewPayloadService(&fakePDS{}, &fakeCards{}, assets)

	_, err := payloads.Build(context.Background(), &models.Post{
		Content:      "picture",
		ScheduledFor: time.Now(),
		Image:        &models.PostImage{AssetKey: "asset-1"},
	}, testSession)
	if err == nil {
		t.Fatal("expected an image embed failure to fail the build")
	}
}

func TestBuild_MentionFacetResolved(t *testing.T) {
	t.Parallel()

	payloads := NewPayloadService(&fakePDS{}, &fakeCards{}, &fakeAssets{})

	record, err := payloads.Build(context.Background(), &models.Post{
		Content:      "hi @alice.bsky.social",
		ScheduledFor: time.Now(),
	}, testSession)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if len(record.Facets) != 1 {
		t.Fatalf("expected 1 facet, got %d", len(record.Facets))
	}
	if record.Facets[0].Features[0].DID != "did:plc:alice.bsky.social" {
		t.Fatalf("unexpected facet %+v", record.Facets[0].Features[0])
	}
}
