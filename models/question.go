package models

// Question is the next opinion a user is asked to agree or disagree with
type Question struct {
	ID        int64  `json:"id"`
	Topic     string `json:"topic"`
	Statement string `json:"statement"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
}

// AnswerResult reports what happened to a submitted answer. Recorded is true
// whenever the answer was persisted, even if the score update failed.
type AnswerResult struct {
	Recorded      bool             `json:"recorded"`
	ScoresUpdated bool             `json:"scores_updated"`
	StrongMatch   bool             `json:"strong_match"`
	Scores        []CandidateScore `json:"scores,omitempty"`
}
