package models

// ScoredItem is a single ranked hit.
type ScoredItem struct {
	Item  ItemMetadata `json:"item"`
	Score float64      `json:"similarity"`
	Rank  int          `json:"rank"`
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	Base            ItemMetadata `json:"base_item"`
	Recommendations []ScoredItem `json:"recommendations"`
	TopK            int          `json:"top_k"`
}

// SearchResponse is the response for a text search.
type SearchResponse struct {
	Query     string       `json:"query"`
	Category  string       `json:"category,omitempty"`
	Results   []ScoredItem `json:"results"`
	Count     int          `json:"count"`
	QueryTime int64        `json:"query_time_ms"`
}

// ListResponse is one page of the listing. Total counts matches before paging.
type ListResponse struct {
	Items  []ItemMetadata `json:"items"`
	Count  int            `json:"count"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// UncategorizedLabel is the Stats bucket for items without a category.
const UncategorizedLabel = "uncategorized"

// Stats summarises the store.
type Stats struct {
	TotalItems       int            `json:"total_items"`
	Categories       map[string]int `json:"categories"`
	Dimensions       int            `json:"dimensions"`
	IndexType        string         `json:"index_type,omitempty"`
	EmbeddingBackend string         `json:"embedding_backend,omitempty"`
}

// ReindexResult reports a full re-embedding pass.
type ReindexResult struct {
	Reindexed  int   `json:"reindexed"`
	Dimensions int   `json:"dimensions"`
	Duration   int64 `json:"duration_ms"`
}
