package models

// Assistant is a remote assistant profile.
type Assistant struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model"`
	CreatedAt    int64    `json:"created_at"`
	VectorStores []string `json:"vector_store_ids,omitempty"`
}

// Answer is the post-processed reply of an assistant to one question.
type Answer struct {
	Text      string   `json:"response"`
	Citations []string `json:"citations"`
}
