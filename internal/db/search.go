package db

// KNNQuery asks for the K nearest chunks to Vector.
type KNNQuery struct {
	Index  string
	Vector []float32
	K      int
	Return []string // hash fields to return with each hit
}

// Hit is one KNN result, ordered by descending similarity.
type Hit struct {
	Key        string
	Similarity float64 // 1 - cosine distance
	Fields     map[string]string
}
