package domain

import (
	"sort"
	"time"
)

// RankPosts orders posts for display in the given lane and returns a new
// slice; the input is never reordered in place. Primary keys per lane:
//
//	fast:    engagement velocity at now, descending
//	cruise:  createdAt, newest first
//	archive: total engagement, descending
//
// Exact primary-key ties break by ID ascending so output is deterministic
// across repeated calls.
func RankPosts(posts []Post, zone Zone, now time.Time) []Post {
	ranked := make([]Post, len(posts))
	copy(ranked, posts)

	sort.Slice(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		switch zone {
		case ZoneFast:
			av, bv := PostVelocity(a, now), PostVelocity(b, now)
			if av != bv {
				return av > bv
			}
		case ZoneCruise:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default:
			at, bt := a.Engagement.Total(), b.Engagement.Total()
			if at != bt {
				return at > bt
			}
		}
		return a.ID < b.ID
	})

	return ranked
}
