package config

// Default chunking matches the corpus the service was tuned on: 1000 characters, 200 overlap.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 4
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.VectorStorePath == "" {
		cfg.Storage.VectorStorePath = "./data/chroma_db"
	}
	if cfg.Storage.VectorStoreType == "" {
		cfg.Storage.VectorStoreType = "chromem"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "legal_documents"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/documents.db"
	}
	if cfg.Ingest.DataDir == "" {
		cfg.Ingest.DataDir = "./data"
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".pdf", ".html", ".txt", ".rtf"}
	}
	if cfg.Ingest.SkipUnchanged == nil {
		t := true
		cfg.Ingest.SkipUnchanged = &t
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.CondenseQuestion == nil {
		t := true
		cfg.Retrieval.CondenseQuestion = &t
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
	}
}
