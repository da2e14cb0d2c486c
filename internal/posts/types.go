package posts

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultLimit is the page size used when a caller does not ask for one.
	DefaultLimit = 10
	// MaxLimit caps a single page.
	MaxLimit = 100
)

// Post is a titled text entry owned by a single user.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Username  string    `json:"username"`
}

// Page selects a window of a user's posts, oldest first.
type Page struct {
	Skip  int
	Limit int
}

// Validate checks skip >= 0 and 1 <= limit <= MaxLimit. Callers fill in
// DefaultLimit themselves when no limit was asked for.
func (p Page) Validate() error {
	if p.Skip < 0 || p.Limit < 1 || p.Limit > MaxLimit {
		return ErrInvalidPage
	}
	return nil
}

// Patch carries the fields of an edit. Blank fields are left unchanged.
type Patch struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (p Patch) hasTitle() bool   { return strings.TrimSpace(p.Title) != "" }
func (p Patch) hasContent() bool { return strings.TrimSpace(p.Content) != "" }

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool { return !p.hasTitle() && !p.hasContent() }

var (
	ErrNotFound        = errors.New("post not found")
	ErrNothingToUpdate = errors.New("nothing to update")
	ErrInvalidPost     = errors.New("title and content are required")
	ErrInvalidPage     = errors.New("invalid page (skip >= 0, 1 <= limit <= 100)")
	ErrNoOwner         = errors.New("post owner is required")
)
