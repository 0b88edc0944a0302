package domain

import "time"

// Zone is the visibility lane a post currently occupies.
type Zone string

const (
	ZoneFast    Zone = "fast"
	ZoneCruise  Zone = "cruise"
	ZoneArchive Zone = "archive"
)

// ParseZone validates a zone name from an untrusted source (query params,
// stream events).
func ParseZone(s string) (Zone, bool) {
	switch Zone(s) {
	case ZoneFast, ZoneCruise, ZoneArchive:
		return Zone(s), true
	default:
		return "", false
	}
}

// PostType distinguishes ordinary posts from the durable content classes.
type PostType string

const (
	PostTypeText   PostType = "text"
	PostTypeThread PostType = "thread"
	PostTypeEcho   PostType = "echo"
	PostTypeGuide  PostType = "guide"
)

// Engagement holds a post's interaction counters. Counters only ever
// increase; the engine reads them but never resets them.
type Engagement struct {
	Likes    int `json:"likes"`
	Echoes   int `json:"echoes"`
	Comments int `json:"comments"`
}

// Total is the unweighted sum used for archive admission and archive ranking.
func (e Engagement) Total() int {
	return e.Likes + e.Echoes + e.Comments
}

// Weighted scores higher-effort interactions more heavily: an echo counts
// double and a comment triple a like.
func (e Engagement) Weighted() int {
	return e.Likes + 2*e.Echoes + 3*e.Comments
}

// Author identifies the wallet that signed the post transaction.
type Author struct {
	Address   string `json:"address"`
	Username  string `json:"username"`
	Influence int    `json:"influence"`
}

// Post is an indexed hall post. Zone membership is not stored: it is derived
// from CreatedAt on every read, except for posts that passed archive
// admission, whose Archived flag is terminal.
type Post struct {
	ID         string     `json:"id"`
	HallID     string     `json:"hallId"`
	Author     Author     `json:"author"`
	Content    string     `json:"content"`
	Type       PostType   `json:"type"`
	Tags       []string   `json:"tags,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	Engagement Engagement `json:"engagement"`

	// QualityScore is the smoothed engagement signal. The post row owns the
	// authoritative prior; the service applies one QualityScoreStep per
	// engagement event.
	QualityScore float64 `json:"qualityScore"`

	// Archived is set when the admission rule preserved the post permanently.
	Archived bool `json:"archived"`

	// ArchiveEvaluated marks that the admission rule already ran for this
	// post. It gates the rule to exactly one evaluation.
	ArchiveEvaluated bool `json:"-"`
}

// IncomingPost is a post transaction from the chain stream that hasn't been
// persisted yet.
type IncomingPost struct {
	// ID is the transaction address of the post on the ledger.
	ID string

	HallID  string
	Author  Author
	Content string
	Type    PostType
	Tags    []string

	// CreatedAt is the chain timestamp of the transaction. Zero means the
	// stream omitted it and indexing time is used instead.
	CreatedAt time.Time
}

// EngagementKind is a single interaction type on a post.
type EngagementKind string

const (
	EngagementLike    EngagementKind = "like"
	EngagementEcho    EngagementKind = "echo"
	EngagementComment EngagementKind = "comment"
)
