package domain

type RetrievalResult struct {
	Rank        int            `json:"rank"`
	Text        string         `json:"text"`
	Score       float64        `json:"score"`
	Source      string         `json:"source"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RerankScore *float64       `json:"rerank_score,omitempty"`
}

type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// QueryRequest carries a raw mode name; an empty name selects the current
// default mode.
type QueryRequest struct {
	Query        string
	TopK         int
	Mode         string
	UseReranking *bool
	Explain      bool
}

type QueryResponse struct {
	Query       string            `json:"query"`
	Results     []RetrievalResult `json:"results"`
	Count       int               `json:"count"`
	LatencyMS   float64           `json:"latency_ms"`
	Strategy    Strategy          `json:"strategy,omitempty"`
	Mode        Mode              `json:"mode"`
	FromCache   bool              `json:"from_cache"`
	Reranked    bool              `json:"reranked,omitempty"`
	Explanation string            `json:"explanation,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func (r QueryResponse) Degraded() bool {
	return r.Error != ""
}
