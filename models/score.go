package models

import "time"

// CandidateScore is a candidate's current match with a user
type CandidateScore struct {
	CandidateID     int64   `json:"candidate_id"`
	CandidateName   string  `json:"candidate_name"`
	Party           string  `json:"party"`
	Score           float64 `json:"score"`
	MatchPercentage int     `json:"match_percentage"`
}

// StrongMatchStatus reports whether a user has reached the reveal threshold
type StrongMatchStatus struct {
	Reached   bool    `json:"reached"`
	Eligible  bool    `json:"eligible"`
	Answers   int     `json:"answers"`
	Threshold float64 `json:"threshold"`
}

// ScoreEvent is pushed to websocket subscribers when a user's scores change
type ScoreEvent struct {
	Type      string           `json:"type"` // "score_updated", "strong_match"
	UserID    string           `json:"userId"`
	Scores    []CandidateScore `json:"scores,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
