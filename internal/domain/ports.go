package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when the requested record does not
// exist (or was discarded at archive admission).
var ErrNotFound = errors.New("not found")

// PostRepository defines persistence operations for indexed posts.
type PostRepository interface {
	// CreatePost inserts a new post. Inserting an already-known ID is a no-op.
	CreatePost(ctx context.Context, post *Post) error

	// GetPost retrieves a post by ID. Returns ErrNotFound if absent.
	GetPost(ctx context.Context, id string) (*Post, error)

	// UpdateEngagement persists new counter values and the stepped quality
	// score for a post.
	UpdateEngagement(ctx context.Context, id string, engagement Engagement, qualityScore float64) error

	// ListLivePosts returns posts still visible in some lane: created after
	// since, or already admitted to the archive. Empty hallID means all halls.
	ListLivePosts(ctx context.Context, hallID string, since time.Time) ([]Post, error)

	// ListUnevaluated returns posts created at or before cutoff whose archive
	// admission has not run yet.
	ListUnevaluated(ctx context.Context, cutoff time.Time) ([]Post, error)

	// MarkArchived records a positive admission decision. It also sets the
	// evaluated marker so the post is never re-evaluated.
	MarkArchived(ctx context.Context, id string) error

	// DeletePost permanently removes a post rejected at archive admission.
	DeletePost(ctx context.Context, id string) error
}

// HallRepository defines persistence operations for halls.
type HallRepository interface {
	// CreateHall inserts a new hall. Inserting an already-known ID is a no-op.
	CreateHall(ctx context.Context, hall *Hall) error

	// GetHall retrieves a hall by ID. Returns ErrNotFound if absent.
	GetHall(ctx context.Context, id string) (*Hall, error)

	// ListHalls returns all halls.
	ListHalls(ctx context.Context) ([]Hall, error)
}

// CursorRepository defines persistence operations for chain-stream cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed chain position for the given
	// service name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the chain position so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// FeedCache caches ranked zone feeds for their staleness window. A miss is
// (nil, false, nil); cache failures are reported but callers treat them as
// misses.
type FeedCache interface {
	GetFeed(ctx context.Context, key string) ([]FeedPost, bool, error)
	SetFeed(ctx context.Context, key string, posts []FeedPost, ttl time.Duration) error
}
