package models

// Statement classifications returned by the paraphraser
const (
	ClassificationOpinion  = "opinion"
	ClassificationFact     = "fact"
	ClassificationProposal = "proposal"
	ClassificationError    = "ERROR"
)

// Paraphrase is the model's classification and assertive rewrite of a statement
type Paraphrase struct {
	Classification  string `json:"classification"`
	TransformedText string `json:"transformed_text"`
}
