package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventPost(t *testing.T) {
	raw := []byte(`{
		"tx_hash": "00ab12",
		"chain_position": 128,
		"kind": "post",
		"post": {
			"hall_id": "hall-1",
			"author_address": "addr-alice",
			"author_username": "alice",
			"author_influence": 7,
			"content": "breaking: new scaling solution",
			"type": "text",
			"tags": ["zk", "scaling"],
			"created_at": "2025-06-01T10:00:00Z"
		}
	}`)

	event, err := parseEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, "00ab12", event.TxHash)
	assert.Equal(t, int64(128), event.ChainPosition)
	assert.Equal(t, "post", event.Kind)
	require.NotNil(t, event.Post)
	assert.Equal(t, "hall-1", event.Post.HallID)
	assert.Equal(t, "alice", event.Post.AuthorUsername)
	assert.Equal(t, []string{"zk", "scaling"}, event.Post.Tags)
}

func TestParseEventEngagement(t *testing.T) {
	raw := []byte(`{
		"tx_hash": "00cd34",
		"chain_position": 129,
		"kind": "engagement",
		"engagement": {"post_id": "00ab12", "action": "echo"}
	}`)

	event, err := parseEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, "engagement", event.Kind)
	require.NotNil(t, event.Engagement)
	assert.Equal(t, "00ab12", event.Engagement.PostID)
	assert.Equal(t, "echo", event.Engagement.Action)
	assert.Nil(t, event.Post)
}

func TestParseEventMalformed(t *testing.T) {
	_, err := parseEvent([]byte(`{"kind":`))
	assert.Error(t, err)
}

func TestParseChainTime(t *testing.T) {
	got := parseChainTime("2025-06-01T10:00:00Z")
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), got)

	assert.True(t, parseChainTime("").IsZero())
	assert.True(t, parseChainTime("yesterday").IsZero())
}
