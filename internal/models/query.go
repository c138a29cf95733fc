package models

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit,omitempty"`
}

// QueryResult is a single ranked rule returned to the caller. Similarity is
// in [0,1], rounded to 3 decimals; GameName is "Unknown" when the owning game
// could not be resolved.
type QueryResult struct {
	RuleID     int64   `json:"id"`
	Rule       string  `json:"rule"`
	GameName   string  `json:"game_name"`
	Similarity float64 `json:"similarity"`
}

// QueryResponse is the response of POST /query.
type QueryResponse struct {
	Query        string        `json:"query"`
	Results      []QueryResult `json:"results"`
	TotalResults int           `json:"total_results"`
}

// UnknownGameName is the placeholder for rules whose owning game is absent.
const UnknownGameName = "Unknown"
