package domain

// Credential is a tenant-owned secret for the embedding/completion provider.
// It must never be logged, cached beyond a single call chain, or echoed in
// error messages.
type Credential struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
}

// IsZero reports whether no API key is configured.
func (c Credential) IsZero() bool { return c.APIKey == "" }

// String redacts the key so accidental %v/%s formatting cannot leak it.
func (c Credential) String() string { return "credential(redacted)" }
