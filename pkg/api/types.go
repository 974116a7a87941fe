package api

import (
	"github.com/atleaf/atleaf/pkg/cache"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// LeavesData is the payload behind the leaves listing. source.HTTPSource
// decodes this same shape when one atleaf node pulls from another.
type LeavesData struct {
	Leaves []LeafPayload `json:"leaves"`
}

// LeafPayload carries one cached leaf on the wire. Byte fields
// serialize as base64.
type LeafPayload struct {
	Index uint64 `json:"index"`
	Leaf  []byte `json:"leaf"`
	Raw   []byte `json:"raw,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind              string
	Port              int
	APIKey            string // Empty disables API key authentication
	SupportedVersions []uint8
	StrictTrailing    bool
	VerifyHashes      bool
}

// LeafStore defines the leaf cache operations the API serves from
type LeafStore interface {
	Get(index uint64) (*cache.CachedLeaf, error)
	Range(from, to uint64, fn func(*cache.CachedLeaf) error) error
	Count() (int, error)
}
