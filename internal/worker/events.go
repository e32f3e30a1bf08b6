package worker

// IngestPayload is a batch of records to index into a vector store table.
type IngestPayload struct {
	TableName string `json:"table_name,omitempty"`
	QueryName string `json:"query_name,omitempty"`

	// Records are records ({"text": ..., "data": {...}}) or documents
	// ({"page_content": ..., "metadata": {...}}).
	Records []any `json:"records"`

	// ChunkSize splits record content into chunks of at most this many bytes
	// before indexing. Zero indexes each record as one document.
	ChunkSize int `json:"chunk_size,omitempty"`

	CorrelationID string `json:"correlation_id"`
}
