package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/nicnocquee/bluesky-later/internal/models"
	"github.com/nicnocquee/bluesky-later/internal/repository"
	"github.com/nicnocquee/bluesky-later/internal/transfer"
)

// memStore is an in-memory PostStore that counts every call, so tests can
// assert that rejected requests never reach the store.
type memStore struct {
	mu    sync.Mutex
	posts map[int64]*models.Post
	creds *models.Credentials
	calls int
}

func newMemStore() *memStore {
	return &memStore{posts: make(map[int64]*models.Post)}
}

func (m *memStore) touch() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *memStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memStore) sorted(filter func(*models.Post) bool) []*models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for id := int64(1); id <= int64(len(m.posts)); id++ {
		if post, ok := m.posts[id]; ok && filter(post) {
			out = append(out, post)
		}
	}
	return out
}

func (m *memStore) GetPendingDuePosts(ctx context.Context) ([]*models.Post, error) {
	m.touch()
	return m.sorted(func(p *models.Post) bool { return p.Status == models.PostStatusPending }), nil
}

func (m *memStore) ClaimDuePosts(ctx context.Context) ([]*models.Post, error) {
	m.touch()
	claimed := m.sorted(func(p *models.Post) bool { return p.Status == models.PostStatusPending })
	m.mu.Lock()
	for _, post := range claimed {
		post.Status = models.PostStatusProcessing
	}
	m.mu.Unlock()
	return claimed, nil
}

func (m *memStore) ClaimPost(ctx context.Context, id int64) (*models.Post, error) {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok || post.Status != models.PostStatusPending {
		return nil, nil
	}
	post.Status = models.PostStatusProcessing
	return post, nil
}

func (m *memStore) GetAllPosts(ctx context.Context) ([]*models.Post, error) {
	m.touch()
	return m.sorted(func(*models.Post) bool { return true }), nil
}

func (m *memStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[id], nil
}

func (m *memStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	post.ID = int64(len(m.posts) + 1)
	post.Status = models.PostStatusPending
	m.posts[post.ID] = post
	return post, nil
}

func (m *memStore) UpdatePost(ctx context.Context, id int64, changes *repository.PostChanges) error {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return errors.New("post not found")
	}
	if changes.Content != nil {
		post.Content = *changes.Content
	}
	if changes.Status != nil {
		post.Status = *changes.Status
	}
	if changes.Error != nil {
		post.Error = *changes.Error
	}
	return nil
}

func (m *memStore) DeletePost(ctx context.Context, id int64) error {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

func (m *memStore) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *memStore) SetCredentials(ctx context.Context, identifier, password string) error {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = &models.Credentials{ID: 1, Identifier: identifier, Password: password}
	return nil
}

func (m *memStore) DeleteCredentials(ctx context.Context) error {
	m.touch()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

type fakePublishService struct {
	runCalls int
	summary  *transfer.RunSummary
	runErr   error
}

func (f *fakePublishService) Run(ctx context.Context) (*transfer.RunSummary, error) {
	f.runCalls++
	if f.runErr != nil {
		return nil, f.runErr
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &transfer.RunSummary{}, nil
}

func (f *fakePublishService) RunOne(ctx context.Context, postID int64) error {
	return nil
}
