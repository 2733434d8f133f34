package models

import "time"

// Answer is a user's agree/disagree response to one opinion. Answers are
// append-only: there is at most one per (user, opinion) and it is never edited.
type Answer struct {
	UserID    string    `bson:"userId" json:"user_id"`
	OpinionID int64     `bson:"opinionId" json:"opinion_id"`
	Choice    bool      `bson:"choice" json:"choice"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// ProfileAnswer is an answer joined with the opinion it responds to
type ProfileAnswer struct {
	QuestionID  int64  `json:"question_id"`
	Topic       string `json:"topic"`
	Statement   string `json:"statement"`
	Agree       bool   `json:"agree"`
	CandidateID int64  `json:"-"`
	TopicID     int64  `json:"-"`
}

// NewProfileAnswer joins an answer with its opinion
func NewProfileAnswer(answer Answer, opinion Opinion) ProfileAnswer {
	return ProfileAnswer{
		QuestionID:  opinion.ID,
		Topic:       opinion.Topic,
		Statement:   opinion.Text,
		Agree:       answer.Choice,
		CandidateID: opinion.CandidateID,
		TopicID:     opinion.TopicID,
	}
}
