package types

import "time"

// JobState represents the phase a job is in.
type JobState string

const (
	StatePending   JobState = "pending"
	StateSharding  JobState = "sharding"
	StateMapping   JobState = "mapping"
	StateBarrier   JobState = "barrier"
	StateReducing  JobState = "reducing"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Stats are cumulative counters for one job.
type Stats struct {
	Shards        int    `json:"shards"`
	PairsEmitted  uint64 `json:"pairs_emitted"`
	RunsWritten   int    `json:"runs_written"`
	GroupsReduced uint64 `json:"groups_reduced"`
}

// Status is a read-only snapshot of a job, safe to hand to pollers.
type Status struct {
	JobID     string    `json:"job_id"`
	State     JobState  `json:"state"`
	Err       string    `json:"error,omitempty"`
	Stats     Stats     `json:"stats"`
	StartedAt time.Time `json:"started_at"`
}
