package domain

// QueueStats are the live per-agency counters derived from ticket state.
type QueueStats struct {
	AgencyID        string  `json:"agency_id"`
	WaitingCount    int     `json:"waiting_count"`
	ServingCount    int     `json:"serving_count"`
	CompletedToday  int     `json:"completed_today"`
	AverageWaitTime float64 `json:"average_wait_time"`
	TotalToday      int     `json:"total_today"`
}
