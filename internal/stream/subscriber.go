package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/innunfold/hall-feeds/internal/domain"
)

const (
	cursorServiceName  = "ledger"
	cursorSaveInterval = 5 * time.Second
)

// wantedKinds is the set of transaction kinds this subscriber requests from
// the node's stream. Only content transactions matter for the feed index.
var wantedKinds = []string{"post", "engagement", "hall"}

// Subscriber connects to the ledger's transaction stream and feeds content
// transactions into the feed service.
type Subscriber struct {
	url         string
	feedService *domain.FeedService
	logger      *slog.Logger
}

// NewSubscriber creates a new stream subscriber.
func NewSubscriber(
	streamURL string,
	feedService *domain.FeedService,
	logger *slog.Logger,
) *Subscriber {
	return &Subscriber{
		url:         streamURL,
		feedService: feedService,
		logger:      logger,
	}
}

// Start connects to the stream and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(5 * time.Second):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	for _, k := range wantedKinds {
		q.Add("kinds", k)
	}
	if cursor > 0 {
		q.Set("from", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.feedService.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL := s.buildURL(cursor)
	s.logger.Info("connecting to ledger stream", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to ledger stream")

	lastCursorSave := time.Now()
	var latestCursor int64
	var eventsReceived, postsIndexed, engagementsApplied int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		latestCursor = event.ChainPosition

		switch event.Kind {
		case "post":
			if err := s.handlePost(ctx, event); err != nil {
				s.logger.Error("failed to index post", "tx", event.TxHash, "error", err)
			} else {
				postsIndexed++
			}
		case "engagement":
			if err := s.handleEngagement(ctx, event); err != nil {
				s.logger.Error("failed to apply engagement", "tx", event.TxHash, "error", err)
			} else {
				engagementsApplied++
			}
		case "hall":
			if err := s.handleHall(ctx, event); err != nil {
				s.logger.Error("failed to index hall", "tx", event.TxHash, "error", err)
			}
		}

		// Log stats every 30 seconds
		if time.Since(lastStatsLog) >= 30*time.Second {
			s.logger.Info("stream stats",
				"events_received", eventsReceived,
				"posts_indexed", postsIndexed,
				"engagements_applied", engagementsApplied,
			)
			lastStatsLog = time.Now()
		}

		// Periodically save cursor
		if time.Since(lastCursorSave) >= cursorSaveInterval {
			if err := s.feedService.UpdateCursor(ctx, cursorServiceName, latestCursor); err != nil {
				s.logger.Error("failed to save cursor", "error", err)
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}

func (s *Subscriber) handlePost(ctx context.Context, event *ledgerEvent) error {
	if event.Post == nil {
		return fmt.Errorf("post event %s has no payload", event.TxHash)
	}

	incoming := &domain.IncomingPost{
		ID:     event.TxHash,
		HallID: event.Post.HallID,
		Author: domain.Author{
			Address:   event.Post.AuthorAddress,
			Username:  event.Post.AuthorUsername,
			Influence: event.Post.AuthorInfluence,
		},
		Content:   event.Post.Content,
		Type:      domain.PostType(event.Post.Type),
		Tags:      event.Post.Tags,
		CreatedAt: parseChainTime(event.Post.CreatedAt),
	}
	return s.feedService.ProcessNewPost(ctx, incoming)
}

func (s *Subscriber) handleEngagement(ctx context.Context, event *ledgerEvent) error {
	if event.Engagement == nil {
		return fmt.Errorf("engagement event %s has no payload", event.TxHash)
	}
	return s.feedService.ProcessEngagement(ctx,
		event.Engagement.PostID,
		domain.EngagementKind(event.Engagement.Action),
	)
}

func (s *Subscriber) handleHall(ctx context.Context, event *ledgerEvent) error {
	if event.Hall == nil {
		return fmt.Errorf("hall event %s has no payload", event.TxHash)
	}

	hall := &domain.Hall{
		ID:          event.TxHash,
		Name:        event.Hall.Name,
		Description: event.Hall.Description,
		Icon:        event.Hall.Icon,
		CreatedAt:   parseChainTime(event.Hall.CreatedAt),
		Settings: domain.HallSettings{
			IsPrivate:         event.Hall.IsPrivate,
			RequiresApproval:  event.Hall.RequiresApproval,
			MinimumReputation: event.Hall.MinimumReputation,
		},
	}
	return s.feedService.ProcessNewHall(ctx, hall)
}

// parseChainTime parses an RFC 3339 chain timestamp; a missing or malformed
// value yields the zero time so the service falls back to indexing time.
func parseChainTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseEvent(data []byte) (*ledgerEvent, error) {
	var event ledgerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}
