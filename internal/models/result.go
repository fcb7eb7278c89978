package models

// Evidence is one retrieved chunk with its similarity score.
type Evidence struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// KeywordHit is a search match over chunk texts.
type KeywordHit struct {
	Position      int           `json:"position"`
	Score         float64       `json:"score"`
	KeywordScore  float64       `json:"keyword_score"`
	SemanticScore float64       `json:"semantic_score,omitempty"`
	RankScore     float64       `json:"rank_score,omitempty"`
	Snippet       string        `json:"snippet"`
	Metadata      ChunkMetadata `json:"metadata"`
}

// KeywordResponse is the response for a search request.
type KeywordResponse struct {
	Query      string        `json:"query"`
	Mode       string        `json:"mode"`
	Results    []*KeywordHit `json:"results"`
	Total      int           `json:"total"`
	Suggestion string        `json:"suggestion,omitempty"`
	QueryTime  int64         `json:"query_time_ms"`
}

// KnowledgeBaseStats summarizes the persisted knowledge base.
type KnowledgeBaseStats struct {
	TotalChunks    int            `json:"total_chunks"`
	TotalDocuments int            `json:"total_documents"`
	Sources        map[string]int `json:"sources"`
	Dimensions     int            `json:"dimensions"`
	IndexSizeBytes int64          `json:"index_size_bytes"`
}

// IngestStats reports what an ingestion run did.
type IngestStats struct {
	RunID         string `json:"run_id"`
	FilesSeen     int    `json:"files_seen"`
	FilesIngested int    `json:"files_ingested"`
	FilesSkipped  int    `json:"files_skipped"`
	FilesRemoved  int    `json:"files_removed"`
	FilesReused   int    `json:"files_reused"`
	NewChunks     int    `json:"new_chunks"`
	TotalChunks   int    `json:"total_chunks"`
	Rebuilt       bool   `json:"rebuilt"`
	DurationMS    int64  `json:"duration_ms"`
}
