package dto

type IngestDocumentRequest struct {
	ID        string `json:"id" validate:"required"`
	SourceURI string `json:"source_uri"`
	RawText   string `json:"raw_text" validate:"required"`
}

type IngestDocumentResponse struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	TokenCount int    `json:"token_count"`
}
