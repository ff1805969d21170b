package api

import "time"

// CatalogEntry is one catalog record in the ops API response.
type CatalogEntry struct {
	Title   string    `json:"title"`
	Link    string    `json:"link"`
	AddedBy int64     `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// CatalogResponse wraps the full catalog listing.
type CatalogResponse struct {
	Entries []CatalogEntry `json:"entries"`
	Total   int            `json:"total"`
}

// SearchHit is a single ranked candidate in the ops API response.
type SearchHit struct {
	Title string  `json:"title"`
	Link  string  `json:"link"`
	Score float64 `json:"score"`
}

// SearchResponse wraps ranked search results.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}
