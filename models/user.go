package models

import "time"

// User is an anonymous quiz participant
type User struct {
	ID             string    `bson:"_id" json:"id"`
	SelectedTopics []string  `bson:"selectedTopics" json:"selected_topics"`
	CreatedAt      time.Time `bson:"createdAt" json:"created_at"`
}

// UserProfile is a read-time projection of a user and their answer history.
// It is rebuilt from answers, opinions and topics and never stored as such.
type UserProfile struct {
	UserID               string          `json:"user_id"`
	SelectedTopics       []string        `json:"selected_topics"`
	Answers              []ProfileAnswer `json:"answers"`
	CurrentQuestionIndex int             `json:"current_question_index"`
}
