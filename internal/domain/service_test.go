package domain

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore implements the post, hall and cursor ports in memory.
type memoryStore struct {
	mu      sync.Mutex
	posts   map[string]Post
	halls   map[string]Hall
	cursors map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		posts:   make(map[string]Post),
		halls:   make(map[string]Hall),
		cursors: make(map[string]int64),
	}
}

func (m *memoryStore) CreatePost(_ context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; ok {
		return nil
	}
	m.posts[post.ID] = *post
	return nil
}

func (m *memoryStore) GetPost(_ context.Context, id string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memoryStore) UpdateEngagement(_ context.Context, id string, e Engagement, qualityScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Engagement = e
	p.QualityScore = qualityScore
	m.posts[id] = p
	return nil
}

func (m *memoryStore) ListLivePosts(_ context.Context, hallID string, since time.Time) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Post
	for _, p := range m.posts {
		if hallID != "" && p.HallID != hallID {
			continue
		}
		if p.CreatedAt.After(since) || p.Archived {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) ListUnevaluated(_ context.Context, cutoff time.Time) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Post
	for _, p := range m.posts {
		if !p.ArchiveEvaluated && !p.CreatedAt.After(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) MarkArchived(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Archived = true
	p.ArchiveEvaluated = true
	m.posts[id] = p
	return nil
}

func (m *memoryStore) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

func (m *memoryStore) CreateHall(_ context.Context, hall *Hall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.halls[hall.ID]; ok {
		return nil
	}
	m.halls[hall.ID] = *hall
	return nil
}

func (m *memoryStore) GetHall(_ context.Context, id string) (*Hall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.halls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (m *memoryStore) ListHalls(_ context.Context) ([]Hall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Hall
	for _, h := range m.halls {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) GetCursor(_ context.Context, service string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[service], nil
}

func (m *memoryStore) UpdateCursor(_ context.Context, service string, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[service] = cursor
	return nil
}

// fakeCache records feed cache traffic.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]FeedPost
	hits    int
	writes  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]FeedPost)}
}

func (c *fakeCache) GetFeed(_ context.Context, key string) ([]FeedPost, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	posts, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return posts, ok, nil
}

func (c *fakeCache) SetFeed(_ context.Context, key string, posts []FeedPost, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = posts
	c.writes++
	return nil
}

func newTestService(store *memoryStore, now time.Time) *FeedService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFeedService(store, store, store, logger).
		WithClock(func() time.Time { return now })
}

func TestProcessNewPost(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	svc := newTestService(store, now)

	err := svc.ProcessNewPost(ctx, &IncomingPost{
		ID:      "tx-1",
		HallID:  "hall-1",
		Author:  Author{Address: "addr-alice", Username: "alice"},
		Content: "first post",
	})
	require.NoError(t, err)

	post, err := store.GetPost(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, now, post.CreatedAt)
	assert.Equal(t, PostTypeText, post.Type)
	assert.Equal(t, InitialQualityScore, post.QualityScore)
	assert.Equal(t, Engagement{}, post.Engagement)

	// Replayed transactions don't clobber the indexed post.
	err = svc.ProcessNewPost(ctx, &IncomingPost{ID: "tx-1", Content: "replay"})
	require.NoError(t, err)
	post, err = store.GetPost(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "first post", post.Content)

	err = svc.ProcessNewPost(ctx, &IncomingPost{})
	assert.Error(t, err)
}

func TestProcessEngagement(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	svc := newTestService(store, now)

	require.NoError(t, svc.ProcessNewPost(ctx, &IncomingPost{ID: "tx-1", HallID: "hall-1"}))

	require.NoError(t, svc.ProcessEngagement(ctx, "tx-1", EngagementLike))
	require.NoError(t, svc.ProcessEngagement(ctx, "tx-1", EngagementEcho))
	require.NoError(t, svc.ProcessEngagement(ctx, "tx-1", EngagementComment))

	post, err := store.GetPost(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, Engagement{Likes: 1, Echoes: 1, Comments: 1}, post.Engagement)

	// Three steps from 0.5 with weighted 1, 3, 6.
	want := QualityScoreStep(QualityScoreStep(QualityScoreStep(InitialQualityScore,
		Engagement{Likes: 1}),
		Engagement{Likes: 1, Echoes: 1}),
		Engagement{Likes: 1, Echoes: 1, Comments: 1})
	assert.InDelta(t, want, post.QualityScore, 1e-9)

	assert.Error(t, svc.ProcessEngagement(ctx, "tx-1", EngagementKind("boost")))
	assert.ErrorIs(t, svc.ProcessEngagement(ctx, "missing", EngagementLike), ErrNotFound)
}

func seedLanes(t *testing.T, store *memoryStore, now time.Time) {
	t.Helper()
	ctx := context.Background()

	posts := []Post{
		{ID: "fast-1", HallID: "hall-1", Type: PostTypeText, CreatedAt: createdAgo(now, 2), Engagement: Engagement{Likes: 145, Echoes: 23, Comments: 67}, QualityScore: 0.5},
		{ID: "fast-2", HallID: "hall-2", Type: PostTypeText, CreatedAt: createdAgo(now, 10), Engagement: Engagement{Likes: 5}, QualityScore: 0.5},
		{ID: "cruise-1", HallID: "hall-1", Type: PostTypeText, CreatedAt: createdAgo(now, 36), Engagement: Engagement{Likes: 89, Echoes: 12, Comments: 34}, QualityScore: 0.5},
		{ID: "archive-1", HallID: "hall-1", Type: PostTypeGuide, CreatedAt: createdAgo(now, 100), Engagement: Engagement{Likes: 567, Echoes: 89, Comments: 123}, QualityScore: 0.5, Archived: true, ArchiveEvaluated: true},
		// Past the boundary but not yet swept: visible nowhere.
		{ID: "pending-1", HallID: "hall-1", Type: PostTypeText, CreatedAt: createdAgo(now, 80), Engagement: Engagement{Likes: 10}, QualityScore: 0.5},
	}
	for i := range posts {
		require.NoError(t, store.CreatePost(ctx, &posts[i]))
	}
}

func TestGetZoneFeed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	svc := newTestService(store, now)
	seedLanes(t, store, now)

	t.Run("fast lane ranks by velocity", func(t *testing.T) {
		feed, err := svc.GetZoneFeed(ctx, ZoneFast, "", 0)
		require.NoError(t, err)
		require.Len(t, feed.Posts, 2)
		assert.Equal(t, "fast-1", feed.Posts[0].ID)
		assert.Equal(t, "fast-2", feed.Posts[1].ID)
		// weighted 145 + 46 + 201 = 392 over 2h
		assert.InDelta(t, 196.0, feed.Posts[0].EngagementVelocity, 1e-9)
		assert.InDelta(t, 22.0, feed.Posts[0].TimeRemainingHours, 1e-9)
	})

	t.Run("cruise lane is chronological", func(t *testing.T) {
		feed, err := svc.GetZoneFeed(ctx, ZoneCruise, "", 0)
		require.NoError(t, err)
		require.Len(t, feed.Posts, 1)
		assert.Equal(t, "cruise-1", feed.Posts[0].ID)
		assert.InDelta(t, 36.0, feed.Posts[0].TimeRemainingHours, 1e-9)
	})

	t.Run("archive lane serves admitted posts only", func(t *testing.T) {
		feed, err := svc.GetZoneFeed(ctx, ZoneArchive, "", 0)
		require.NoError(t, err)
		require.Len(t, feed.Posts, 1)
		assert.Equal(t, "archive-1", feed.Posts[0].ID)
		assert.Zero(t, feed.Posts[0].TimeRemainingHours)
	})

	t.Run("hall filter", func(t *testing.T) {
		feed, err := svc.GetZoneFeed(ctx, ZoneFast, "hall-2", 0)
		require.NoError(t, err)
		require.Len(t, feed.Posts, 1)
		assert.Equal(t, "fast-2", feed.Posts[0].ID)
	})

	t.Run("limit truncates after ranking", func(t *testing.T) {
		feed, err := svc.GetZoneFeed(ctx, ZoneFast, "", 1)
		require.NoError(t, err)
		require.Len(t, feed.Posts, 1)
		assert.Equal(t, "fast-1", feed.Posts[0].ID)
	})
}

func TestGetZoneFeedUsesCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	cache := newFakeCache()
	svc := newTestService(store, now).WithCache(cache)
	seedLanes(t, store, now)

	first, err := svc.GetZoneFeed(ctx, ZoneFast, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes)
	assert.Equal(t, 0, cache.hits)

	// Drop the backing rows: the second read must come from the cache.
	require.NoError(t, store.DeletePost(ctx, "fast-1"))
	require.NoError(t, store.DeletePost(ctx, "fast-2"))

	second, err := svc.GetZoneFeed(ctx, ZoneFast, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.Posts, second.Posts)
}

func TestZoneStats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	svc := newTestService(store, now)
	seedLanes(t, store, now)

	stats, err := svc.ZoneStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, ZoneStats{Posts: 2, Engagement: 240}, stats[ZoneFast])
	assert.Equal(t, ZoneStats{Posts: 1, Engagement: 135}, stats[ZoneCruise])
	assert.Equal(t, ZoneStats{Posts: 1, Engagement: 779}, stats[ZoneArchive])
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	svc := newTestService(store, now)

	posts := []Post{
		// 80h old, total 510: admitted.
		{ID: "keeper", HallID: "hall-1", Type: PostTypeText, CreatedAt: createdAgo(now, 80), Engagement: Engagement{Likes: 400, Echoes: 80, Comments: 30}},
		// 80h old, total 17: discarded.
		{ID: "fader", HallID: "hall-1", Type: PostTypeText, CreatedAt: createdAgo(now, 80), Engagement: Engagement{Likes: 10, Echoes: 5, Comments: 2}},
		// Low engagement but a guide: admitted.
		{ID: "guide", HallID: "hall-1", Type: PostTypeGuide, CreatedAt: createdAgo(now, 100), Engagement: Engagement{Likes: 3}},
		// Still cruising: untouched.
		{ID: "young", HallID: "hall-1", Type: PostTypeText, CreatedAt: createdAgo(now, 30)},
	}
	for i := range posts {
		require.NoError(t, store.CreatePost(ctx, &posts[i]))
	}

	admitted, discarded, err := svc.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, admitted)
	assert.Equal(t, 1, discarded)

	_, err = store.GetPost(ctx, "fader")
	assert.ErrorIs(t, err, ErrNotFound)

	keeper, err := store.GetPost(ctx, "keeper")
	require.NoError(t, err)
	assert.True(t, keeper.Archived)
	assert.True(t, keeper.ArchiveEvaluated)

	young, err := store.GetPost(ctx, "young")
	require.NoError(t, err)
	assert.False(t, young.ArchiveEvaluated)

	// Re-running the sweep is a no-op for evaluated posts.
	admitted, discarded, err = svc.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, admitted)
	assert.Zero(t, discarded)

	// The discarded post never reappears in any lane.
	feed, err := svc.GetZoneFeed(ctx, ZoneArchive, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"keeper", "guide"}, feedIDs(feed))
}

func feedIDs(feed *ZoneFeed) []string {
	ids := make([]string, len(feed.Posts))
	for i, p := range feed.Posts {
		ids[i] = p.ID
	}
	return ids
}

func TestProcessNewHallAndFeaturedHalls(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	svc := newTestService(store, now)

	halls := []Hall{
		{ID: "hall-a", Name: "Protocol Talk", Metrics: HallMetrics{ActiveMembers: 40, TotalPosts: 10}},
		{ID: "hall-b", Name: "Node Runners", Metrics: HallMetrics{ActiveMembers: 100, TotalPosts: 200}},
		{ID: "hall-c", Name: "Governance", Metrics: HallMetrics{ActiveMembers: 30, TotalPosts: 20}},
	}
	for i := range halls {
		require.NoError(t, svc.ProcessNewHall(ctx, &halls[i]))
	}

	featured, err := svc.FeaturedHalls(ctx, 2)
	require.NoError(t, err)
	require.Len(t, featured, 2)
	assert.Equal(t, "hall-b", featured[0].ID)
	assert.Equal(t, "hall-a", featured[1].ID)

	hall, err := svc.GetHall(ctx, "hall-c")
	require.NoError(t, err)
	assert.Equal(t, "Governance", hall.Name)
	assert.Equal(t, now, hall.CreatedAt)
}

func TestCursorRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := newTestService(store, time.Now())

	cursor, err := svc.GetCursor(ctx, "ledger")
	require.NoError(t, err)
	assert.Zero(t, cursor)

	require.NoError(t, svc.UpdateCursor(ctx, "ledger", 42))
	cursor, err = svc.GetCursor(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, int64(42), cursor)
}
