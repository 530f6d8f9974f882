package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nicnocquee/bluesky-later/internal/bluesky"
	"github.com/nicnocquee/bluesky-later/internal/models"
	"github.com/nicnocquee/bluesky-later/internal/repository"
	"github.com/nicnocquee/bluesky-later/internal/transfer"
)

type fakePDS struct {
	sessionErr error
	resolveErr error
	uploadErr  error
	createErr  error

	sessionCalls int
	uploaded     [][]byte
	created      []*bluesky.PostRecord
}

func (f *fakePDS) CreateSession(ctx context.Context, identifier, password string) (*bluesky.Session, error) {
	f.sessionCalls++
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &bluesky.Session{AccessJwt: "jwt", DID: "did:plc:test", Handle: identifier}, nil
}

func (f *fakePDS) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "did:plc:" + handle, nil
}

func (f *fakePDS) UploadBlob(ctx context.Context, session *bluesky.Session, data []byte, mimeType string) (*bluesky.BlobRef, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploaded = append(f.uploaded, data)
	blob := &bluesky.BlobRef{Type: "blob", MimeType: mimeType, Size: len(data)}
	blob.Ref.Link = fmt.Sprintf("bafy%d", len(f.uploaded))
	return blob, nil
}

func (f *fakePDS) CreateRecord(ctx context.Context, session *bluesky.Session, record *bluesky.PostRecord) (*bluesky.CreateRecordResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, record)
	return &bluesky.CreateRecordResponse{URI: "at://did:plc:test/app.bsky.feed.post/3k", CID: "bafyrec"}, nil
}

type fakeCards struct {
	card     *transfer.LinkCard
	imageErr error
}

func (f *fakeCards) ResolveCard(ctx context.Context, pageURL string) *transfer.LinkCard {
	if f.card != nil {
		return f.card
	}
	return &transfer.LinkCard{URI: pageURL, Title: pageURL, Description: ""}
}

func (f *fakeCards) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if f.imageErr != nil {
		return nil, "", f.imageErr
	}
	return []byte{1, 2, 3}, "image/png", nil
}

type fakeAssets struct {
	objects  map[string][]byte
	fetchErr error
}

func (f *fakeAssets) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	key := fmt.Sprintf("asset-%d", len(f.objects)+1)
	f.objects[key] = data
	return key, nil
}

func (f *fakeAssets) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	if f.fetchErr != nil {
		return nil, "", f.fetchErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, "", errors.New("asset not found")
	}
	return data, "image/png", nil
}

func (f *fakeAssets) Enabled() bool { return true }

// fakeStore is an in-memory PostStore. Due selection treats every pending
// post as due; scheduling cutoffs are exercised against the real stores.
type fakeStore struct {
	mu    sync.Mutex
	posts map[int64]*models.Post
	creds *models.Credentials

	credsErr error
	dueErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{posts: make(map[int64]*models.Post)}
}

func (f *fakeStore) add(post *models.Post) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	post.ID = int64(len(f.posts) + 1)
	f.posts[post.ID] = post
	return post
}

func (f *fakeStore) status(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[id].Status
}

func (f *fakeStore) pendingPosts() []*models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for id := int64(1); id <= int64(len(f.posts)); id++ {
		if post, ok := f.posts[id]; ok && post.Status == models.PostStatusPending {
			out = append(out, post)
		}
	}
	return out
}

func (f *fakeStore) GetPendingDuePosts(ctx context.Context) ([]*models.Post, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	return f.pendingPosts(), nil
}

func (f *fakeStore) ClaimDuePosts(ctx context.Context) ([]*models.Post, error) {
	claimed := f.pendingPosts()
	f.mu.Lock()
	for _, post := range claimed {
		post.Status = models.PostStatusProcessing
	}
	f.mu.Unlock()
	return claimed, nil
}

func (f *fakeStore) ClaimPost(ctx context.Context, id int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok || post.Status != models.PostStatusPending {
		return nil, nil
	}
	post.Status = models.PostStatusProcessing
	return post, nil
}

func (f *fakeStore) GetAllPosts(ctx context.Context) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for id := int64(1); id <= int64(len(f.posts)); id++ {
		if post, ok := f.posts[id]; ok {
			out = append(out, post)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return nil, errors.New("post not found")
	}
	return post, nil
}

func (f *fakeStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	return f.add(post), nil
}

func (f *fakeStore) UpdatePost(ctx context.Context, id int64, changes *repository.PostChanges) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return errors.New("post not found")
	}
	if changes.Status != nil {
		post.Status = *changes.Status
	}
	if changes.Error != nil {
		post.Error = *changes.Error
	}
	if changes.Content != nil {
		post.Content = *changes.Content
	}
	return nil
}

func (f *fakeStore) DeletePost(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.posts, id)
	return nil
}

func (f *fakeStore) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	if f.credsErr != nil {
		return nil, f.credsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds, nil
}

func (f *fakeStore) SetCredentials(ctx context.Context, identifier, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = &models.Credentials{ID: 1, Identifier: identifier, Password: password}
	return nil
}

func (f *fakeStore) DeleteCredentials(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = nil
	return nil
}
