package domain

// Chunk is a piece of document text that is embedded and indexed as one unit.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

// ScoredChunk is a retrieval hit. Score is cosine similarity (higher is closer).
type ScoredChunk struct {
	Chunk
	Score float64
}
