package service

import (
	"context"

	"github.com/nicnocquee/bluesky-later/internal/bluesky"
)

// PDSClient is the slice of the AT Protocol client the services depend on.
// *bluesky.Client satisfies it; tests substitute fakes.
type PDSClient interface {
	CreateSession(ctx context.Context, identifier, password string) (*bluesky.Session, error)
	ResolveHandle(ctx context.Context, handle string) (string, error)
	UploadBlob(ctx context.Context, session *bluesky.Session, data []byte, mimeType string) (*bluesky.BlobRef, error)
	CreateRecord(ctx context.Context, session *bluesky.Session, record *bluesky.PostRecord) (*bluesky.CreateRecordResponse, error)
}
