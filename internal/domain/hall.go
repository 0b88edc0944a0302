package domain

import "time"

// HallMetrics tracks a hall's aggregate activity.
type HallMetrics struct {
	TotalPosts    int `json:"totalPosts"`
	ActiveMembers int `json:"activeMembers"`
	EnergyPool    int `json:"energyPool"`
}

// HallSettings controls membership rules.
type HallSettings struct {
	IsPrivate         bool `json:"isPrivate"`
	RequiresApproval  bool `json:"requiresApproval"`
	MinimumReputation int  `json:"minimumReputation"`
}

// Hall is a community space posts belong to.
type Hall struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Icon        string       `json:"icon,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Metrics     HallMetrics  `json:"metrics"`
	Settings    HallSettings `json:"settings"`
}

// Prominence is the featured-hall sort key: halls with the most active
// members and posts surface first.
func (h *Hall) Prominence() int {
	return h.Metrics.ActiveMembers + h.Metrics.TotalPosts
}
