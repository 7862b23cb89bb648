package vulnerability

// Provider yields all advisory claims registered for a product name.
type Provider interface {
	GetByProduct(product string) ([]Vulnerability, error)
}

// MetadataProvider resolves the descriptive portion of an advisory by its ID.
type MetadataProvider interface {
	GetMetadata(id string) (*Metadata, error)
}
