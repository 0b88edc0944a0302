package domain

// FeedPost is a post decorated with the display metrics of its lane.
type FeedPost struct {
	Post

	// TimeRemainingHours is how long until the post leaves its current lane;
	// zero in the archive lane.
	TimeRemainingHours float64 `json:"timeRemainingHours"`

	// EngagementVelocity is the post's weighted engagements per hour.
	EngagementVelocity float64 `json:"engagementVelocity"`
}

// ZoneFeed is the response body for a ranked lane query.
type ZoneFeed struct {
	Zone  Zone       `json:"zone"`
	Posts []FeedPost `json:"posts"`
}

// ZoneStats aggregates a lane's activity for the zone navigation display.
type ZoneStats struct {
	Posts      int `json:"posts"`
	Engagement int `json:"engagement"`
}
