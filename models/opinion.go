package models

// Topic groups opinions under a policy area such as "economy" or "health"
type Topic struct {
	ID   int64  `bson:"_id" json:"id" yaml:"id" validate:"gt=0"`
	Name string `bson:"name" json:"name" yaml:"name" validate:"required"`
}

// Candidate is a political candidate whose opinions make up the quiz
type Candidate struct {
	ID    int64  `bson:"_id" json:"id" yaml:"id" validate:"gt=0"`
	Name  string `bson:"name" json:"name" yaml:"name" validate:"required"`
	Party string `bson:"party" json:"party" yaml:"party"`
}

// Opinion is a single paraphrased policy statement. It belongs to exactly one
// topic and one candidate and is never modified once loaded.
type Opinion struct {
	ID          int64     `bson:"_id" json:"id" yaml:"id" validate:"gt=0"`
	Text        string    `bson:"text" json:"text" yaml:"text" validate:"required"`
	TopicID     int64     `bson:"topicId" json:"topic_id" yaml:"topic_id" validate:"gt=0"`
	Topic       string    `bson:"topic,omitempty" json:"topic,omitempty" yaml:"-"`
	CandidateID int64     `bson:"candidateId" json:"candidate_id" yaml:"candidate_id"`
	Embedding   []float32 `bson:"embedding,omitempty" json:"-" yaml:"-"`
}

// Catalog is the reference data a quiz is built from
type Catalog struct {
	Topics     []Topic     `yaml:"topics" validate:"required,dive"`
	Candidates []Candidate `yaml:"candidates" validate:"required,dive"`
	Opinions   []Opinion   `yaml:"opinions" validate:"required,dive"`
}
