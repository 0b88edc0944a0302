package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Feed cache staleness windows. The fast lane reorders quickly under fresh
// engagement, so it refreshes twice as often.
const (
	fastFeedTTL  = 30 * time.Second
	slowFeedTTL  = 60 * time.Second
	maxFeedLimit = 100
)

// FeedService owns the zone lifecycle of hall posts: it ingests snapshots
// from the chain stream, reclassifies them by age on every read, runs the
// one-time archive admission at the 72h boundary, and serves ranked lane
// feeds.
type FeedService struct {
	posts   PostRepository
	halls   HallRepository
	cursors CursorRepository
	cache   FeedCache // nil disables caching
	logger  *slog.Logger
	now     func() time.Time
}

// NewFeedService creates a FeedService over the given repositories.
func NewFeedService(posts PostRepository, halls HallRepository, cursors CursorRepository, logger *slog.Logger) *FeedService {
	return &FeedService{
		posts:   posts,
		halls:   halls,
		cursors: cursors,
		logger:  logger,
		now:     time.Now,
	}
}

// WithCache attaches a ranked-feed cache.
func (s *FeedService) WithCache(cache FeedCache) *FeedService {
	s.cache = cache
	return s
}

// WithClock overrides the wall clock, for tests.
func (s *FeedService) WithClock(now func() time.Time) *FeedService {
	s.now = now
	return s
}

// ProcessNewPost indexes a post transaction from the chain stream. Replayed
// transactions are no-ops.
func (s *FeedService) ProcessNewPost(ctx context.Context, incoming *IncomingPost) error {
	if incoming.ID == "" {
		return fmt.Errorf("incoming post has no transaction address")
	}

	createdAt := incoming.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	postType := incoming.Type
	if postType == "" {
		postType = PostTypeText
	}

	post := &Post{
		ID:           incoming.ID,
		HallID:       incoming.HallID,
		Author:       incoming.Author,
		Content:      incoming.Content,
		Type:         postType,
		Tags:         incoming.Tags,
		CreatedAt:    createdAt,
		QualityScore: InitialQualityScore,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// ProcessEngagement applies one interaction to a post: the matching counter
// is incremented and the quality score advances one step from the stored
// prior.
func (s *FeedService) ProcessEngagement(ctx context.Context, postID string, kind EngagementKind) error {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("get post %s: %w", postID, err)
	}

	switch kind {
	case EngagementLike:
		post.Engagement.Likes++
	case EngagementEcho:
		post.Engagement.Echoes++
	case EngagementComment:
		post.Engagement.Comments++
	default:
		return fmt.Errorf("unknown engagement kind %q", kind)
	}

	score := QualityScoreStep(post.QualityScore, post.Engagement)
	if err := s.posts.UpdateEngagement(ctx, postID, post.Engagement, score); err != nil {
		return fmt.Errorf("update engagement: %w", err)
	}
	return nil
}

// ProcessNewHall indexes a hall-creation transaction.
func (s *FeedService) ProcessNewHall(ctx context.Context, hall *Hall) error {
	if hall.ID == "" {
		return fmt.Errorf("incoming hall has no transaction address")
	}
	if hall.CreatedAt.IsZero() {
		hall.CreatedAt = s.now().UTC()
	}
	if err := s.halls.CreateHall(ctx, hall); err != nil {
		return fmt.Errorf("create hall: %w", err)
	}
	return nil
}

// GetZoneFeed returns the ranked feed for a lane, optionally scoped to one
// hall. Posts are classified at the current wall clock; the archive lane
// serves only posts that passed admission.
func (s *FeedService) GetZoneFeed(ctx context.Context, zone Zone, hallID string, limit int) (*ZoneFeed, error) {
	if limit < 1 || limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	key := feedCacheKey(zone, hallID, limit)
	if s.cache != nil {
		cached, ok, err := s.cache.GetFeed(ctx, key)
		if err != nil {
			s.logger.Warn("feed cache read failed", "key", key, "error", err)
		} else if ok {
			return &ZoneFeed{Zone: zone, Posts: cached}, nil
		}
	}

	now := s.now().UTC()
	posts, err := s.posts.ListLivePosts(ctx, hallID, now.Add(-CruiseLaneAge))
	if err != nil {
		return nil, fmt.Errorf("list live posts: %w", err)
	}

	lane := make([]Post, 0, len(posts))
	for _, p := range posts {
		if laneOf(&p, now) == zone {
			lane = append(lane, p)
		}
	}

	ranked := RankPosts(lane, zone, now)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	feed := &ZoneFeed{Zone: zone, Posts: make([]FeedPost, len(ranked))}
	for i := range ranked {
		c := Classify(ranked[i].CreatedAt, now)
		feed.Posts[i] = FeedPost{
			Post:               ranked[i],
			TimeRemainingHours: c.TimeRemaining.Hours(),
			EngagementVelocity: PostVelocity(&ranked[i], now),
		}
	}

	if s.cache != nil {
		if err := s.cache.SetFeed(ctx, key, feed.Posts, feedTTL(zone)); err != nil {
			s.logger.Warn("feed cache write failed", "key", key, "error", err)
		}
	}

	return feed, nil
}

// ZoneStats returns per-lane post counts and total engagement across all
// halls.
func (s *FeedService) ZoneStats(ctx context.Context) (map[Zone]ZoneStats, error) {
	now := s.now().UTC()
	posts, err := s.posts.ListLivePosts(ctx, "", now.Add(-CruiseLaneAge))
	if err != nil {
		return nil, fmt.Errorf("list live posts: %w", err)
	}

	stats := map[Zone]ZoneStats{
		ZoneFast:    {},
		ZoneCruise:  {},
		ZoneArchive: {},
	}
	for i := range posts {
		zone := laneOf(&posts[i], now)
		if zone == "" {
			continue
		}
		st := stats[zone]
		st.Posts++
		st.Engagement += posts[i].Engagement.Total()
		stats[zone] = st
	}
	return stats, nil
}

// laneOf maps a post to the lane it is visible in right now, or "" if it is
// past the cruise boundary but admission hasn't run yet (it stays hidden
// until the next sweep).
func laneOf(p *Post, now time.Time) Zone {
	if p.Archived {
		return ZoneArchive
	}
	c := Classify(p.CreatedAt, now)
	if c.Zone == ZoneArchive {
		return ""
	}
	return c.Zone
}

// Sweep runs the archive-admission pass: every post at or past the 72h
// boundary whose admission hasn't run is evaluated exactly once. Admitted
// posts are frozen in the archive; the rest are permanently deleted. Safe to
// call arbitrarily often — evaluated posts are never reselected.
func (s *FeedService) Sweep(ctx context.Context, now time.Time) (admitted, discarded int, err error) {
	posts, err := s.posts.ListUnevaluated(ctx, now.Add(-CruiseLaneAge))
	if err != nil {
		return 0, 0, fmt.Errorf("list unevaluated posts: %w", err)
	}

	for i := range posts {
		p := &posts[i]
		if AdmitToArchive(p) {
			if err := s.posts.MarkArchived(ctx, p.ID); err != nil {
				s.logger.Error("mark archived failed", "post", p.ID, "error", err)
				continue
			}
			admitted++
		} else {
			if err := s.posts.DeletePost(ctx, p.ID); err != nil {
				s.logger.Error("discard post failed", "post", p.ID, "error", err)
				continue
			}
			discarded++
		}
	}
	return admitted, discarded, nil
}

// StartSweepJob runs the admission sweep immediately and then at the given
// interval. It blocks until ctx is cancelled. A longer interval only widens
// the window in which a boundary-crossing post is hidden, never correctness.
func (s *FeedService) StartSweepJob(ctx context.Context, interval time.Duration) {
	s.runSweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *FeedService) runSweep(ctx context.Context) {
	admitted, discarded, err := s.Sweep(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("archive sweep failed", "error", err)
	} else if admitted > 0 || discarded > 0 {
		s.logger.Info("archive sweep complete", "admitted", admitted, "discarded", discarded)
	}
}

// ListHalls returns all halls.
func (s *FeedService) ListHalls(ctx context.Context) ([]Hall, error) {
	return s.halls.ListHalls(ctx)
}

// GetHall returns a single hall by ID.
func (s *FeedService) GetHall(ctx context.Context, id string) (*Hall, error) {
	return s.halls.GetHall(ctx, id)
}

// FeaturedHalls returns up to n halls ordered by prominence (active members
// plus total posts), ties broken by ID.
func (s *FeedService) FeaturedHalls(ctx context.Context, n int) ([]Hall, error) {
	halls, err := s.halls.ListHalls(ctx)
	if err != nil {
		return nil, fmt.Errorf("list halls: %w", err)
	}

	sort.Slice(halls, func(i, j int) bool {
		pi, pj := halls[i].Prominence(), halls[j].Prominence()
		if pi != pj {
			return pi > pj
		}
		return halls[i].ID < halls[j].ID
	})

	if n > 0 && len(halls) > n {
		halls = halls[:n]
	}
	return halls, nil
}

// GetCursor retrieves the last-processed chain position for the given service.
func (s *FeedService) GetCursor(ctx context.Context, service string) (int64, error) {
	return s.cursors.GetCursor(ctx, service)
}

// UpdateCursor persists the chain position for the given service.
func (s *FeedService) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	return s.cursors.UpdateCursor(ctx, service, cursor)
}

func feedCacheKey(zone Zone, hallID string, limit int) string {
	if hallID == "" {
		hallID = "all"
	}
	return fmt.Sprintf("feed:%s:%s:%d", zone, hallID, limit)
}

func feedTTL(zone Zone) time.Duration {
	if zone == ZoneFast {
		return fastFeedTTL
	}
	return slowFeedTTL
}
