package cache

// Store defines the interface for response cache operations.
// Implementations apply a single fixed TTL to every entry.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	Clear(pattern string) int
	Stats() Stats
}

// Stats summarizes the contents of a Store.
type Stats struct {
	TotalItems       int     `json:"totalItems"`
	ApproxSizeKB     float64 `json:"approxSizeKB"`
	OldestAgeMinutes float64 `json:"oldestAgeMinutes"`
}
