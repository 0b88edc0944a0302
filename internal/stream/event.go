package stream

// ledgerEvent is the raw JSON structure pushed by the node's transaction
// stream.
type ledgerEvent struct {
	TxHash        string           `json:"tx_hash"`
	ChainPosition int64            `json:"chain_position"`
	Kind          string           `json:"kind"`
	Post          *postEvent       `json:"post,omitempty"`
	Engagement    *engagementEvent `json:"engagement,omitempty"`
	Hall          *hallEvent       `json:"hall,omitempty"`
}

// postEvent is the payload of a create_post transaction. The post's ID is
// the transaction address carried on the envelope.
type postEvent struct {
	HallID          string   `json:"hall_id"`
	AuthorAddress   string   `json:"author_address"`
	AuthorUsername  string   `json:"author_username"`
	AuthorInfluence int      `json:"author_influence"`
	Content         string   `json:"content"`
	Type            string   `json:"type"`
	Tags            []string `json:"tags,omitempty"`
	CreatedAt       string   `json:"created_at"` // RFC 3339
}

// engagementEvent is the payload of a like/echo/comment transaction.
type engagementEvent struct {
	PostID string `json:"post_id"`
	Action string `json:"action"`
}

// hallEvent is the payload of a create_hall transaction.
type hallEvent struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Icon              string `json:"icon,omitempty"`
	IsPrivate         bool   `json:"is_private"`
	RequiresApproval  bool   `json:"requires_approval"`
	MinimumReputation int    `json:"minimum_reputation"`
	CreatedAt         string `json:"created_at"` // RFC 3339
}
