package posts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Service defines post operations. Every call is scoped to the owning
// username; posts of other users behave as if they did not exist.
type Service interface {
	Create(ctx context.Context, username, title, content string) (Post, error)
	Update(ctx context.Context, username string, id int64, patch Patch) (Post, error)
	Get(ctx context.Context, username string, id int64) (Post, error)
	List(ctx context.Context, username string, page Page) ([]Post, error)
	Count(ctx context.Context, username string) (int, error)
	Delete(ctx context.Context, username string, id int64) error
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu    sync.RWMutex
	seq   int64
	posts map[int64]*Post
	now   func() time.Time
}

// NewInMemory creates an empty post store.
func NewInMemory() *InMemory {
	return &InMemory{
		posts: make(map[int64]*Post),
		now:   time.Now,
	}
}

func (s *InMemory) Create(ctx context.Context, username, title, content string) (Post, error) {
	if err := ValidateNew(username, title, content); err != nil {
		return Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	p := &Post{
		ID:        s.seq,
		Title:     title,
		Content:   content,
		CreatedAt: s.now().UTC(),
		Username:  username,
	}
	s.posts[p.ID] = p
	return *p, nil
}

func (s *InMemory) Update(ctx context.Context, username string, id int64, patch Patch) (Post, error) {
	if patch.Empty() {
		return Post{}, ErrNothingToUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.owned(username, id)
	if !ok {
		return Post{}, ErrNotFound
	}
	if patch.hasTitle() {
		p.Title = patch.Title
	}
	if patch.hasContent() {
		p.Content = patch.Content
	}
	return *p, nil
}

func (s *InMemory) Get(ctx context.Context, username string, id int64) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.owned(username, id)
	if !ok {
		return Post{}, ErrNotFound
	}
	return *p, nil
}

func (s *InMemory) List(ctx context.Context, username string, page Page) ([]Post, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var mine []Post
	for _, p := range s.posts {
		if p.Username == username {
			mine = append(mine, *p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(mine, func(i, j int) bool { return mine[i].ID < mine[j].ID })
	if page.Skip >= len(mine) {
		return []Post{}, nil
	}
	end := min(page.Skip+page.Limit, len(mine))
	return mine[page.Skip:end], nil
}

func (s *InMemory) Count(ctx context.Context, username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.posts {
		if p.Username == username {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) Delete(ctx context.Context, username string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owned(username, id); !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

// caller holds s.mu
func (s *InMemory) owned(username string, id int64) (*Post, bool) {
	p, ok := s.posts[id]
	if !ok || p.Username != username {
		return nil, false
	}
	return p, true
}

// ValidateNew checks the fields required to create a post.
func ValidateNew(username, title, content string) error {
	if strings.TrimSpace(username) == "" {
		return ErrNoOwner
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return ErrInvalidPost
	}
	return nil
}
