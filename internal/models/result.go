package models

// Source is a retrieved chunk reported back alongside an answer.
type Source struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Excerpt    string  `json:"excerpt"`
}

// AnswerResponse is the response for an answer request.
// Answer is always set, also when the pipeline failed; ErrorKind is then non-empty.
type AnswerResponse struct {
	Answer string `json:"answer"`
	// History is the request history with this exchange appended, ready to send back next turn.
	History            History  `json:"history"`
	StandaloneQuestion string   `json:"standalone_question,omitempty"`
	Sources            []Source `json:"sources,omitempty"`
	ErrorKind          string   `json:"error_kind,omitempty"`
	QueryTime          int64    `json:"query_time_ms"`
}

// IngestReport summarizes a batch ingestion. Failed files do not stop the batch.
type IngestReport struct {
	Ingested []string    `json:"ingested"`
	Skipped  []string    `json:"skipped,omitempty"`
	Failed   []FileError `json:"failed,omitempty"`
	Chunks   int         `json:"chunks"`
}

// FileError records why a single file could not be ingested.
type FileError struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
