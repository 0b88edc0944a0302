package domain

import "time"

// Lane age boundaries. Lanes are left-closed/right-open: a post exactly 24
// hours old is cruise, exactly 72 hours old is archive.
const (
	FastLaneAge   = 24 * time.Hour
	CruiseLaneAge = 72 * time.Hour
)

// archiveEngagementFloor is the total engagement a post must strictly exceed
// to be preserved at the 72h boundary.
const archiveEngagementFloor = 500

// InitialQualityScore is assigned to every newly indexed post.
const InitialQualityScore = 0.5

// Classification pairs a lane with the time left before the post leaves it.
// TimeRemaining is zero for the archive lane, which is permanent.
type Classification struct {
	Zone          Zone
	TimeRemaining time.Duration
}

// Classify buckets a post into a lane by its age at now. A createdAt in the
// future (clock skew, bad chain timestamp) is treated as age zero rather than
// producing a negative duration.
func Classify(createdAt, now time.Time) Classification {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}

	switch {
	case age < FastLaneAge:
		return Classification{Zone: ZoneFast, TimeRemaining: FastLaneAge - age}
	case age < CruiseLaneAge:
		return Classification{Zone: ZoneCruise, TimeRemaining: CruiseLaneAge - age}
	default:
		return Classification{Zone: ZoneArchive}
	}
}

// AdmitToArchive decides whether a post crossing the 72h boundary is
// preserved permanently. Total engagement must strictly exceed the floor, so
// exactly 500 is rejected. Guides are always preserved. Callers must invoke
// this at most once per post; the decision is terminal.
func AdmitToArchive(p *Post) bool {
	return p.Engagement.Total() > archiveEngagementFloor || p.Type == PostTypeGuide
}

// EngagementVelocity is weighted engagement per hour of age. Ages under one
// hour are floored to one hour so fresh posts don't divide by a sliver.
func EngagementVelocity(e Engagement, age time.Duration) float64 {
	hours := age.Hours()
	if hours < 1 {
		hours = 1
	}
	return float64(e.Weighted()) / hours
}

// PostVelocity is EngagementVelocity evaluated at now, with the same
// future-timestamp clamp as Classify.
func PostVelocity(p *Post, now time.Time) float64 {
	age := now.Sub(p.CreatedAt)
	if age < 0 {
		age = 0
	}
	return EngagementVelocity(p.Engagement, age)
}

// QualityScoreStep advances a post's quality score one step: the prior is
// averaged with the current weighted engagement normalized to [0, 1] at 100
// weighted interactions. It must be applied exactly once per engagement
// change, with the prior read from the post record.
func QualityScoreStep(prior float64, e Engagement) float64 {
	signal := float64(e.Weighted()) / 100
	if signal > 1 {
		signal = 1
	}
	return (prior + signal) / 2
}
