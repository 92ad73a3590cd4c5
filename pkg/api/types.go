package api

import (
	"github.com/ssargent/hatrom/pkg/inventory"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string // empty disables authentication

	// MaxBodySize caps request bodies; 0 means DefaultMaxBodySize
	MaxBodySize int64
}

// DefaultMaxBodySize comfortably covers a 64 KiB EEPROM and its manifest.
const DefaultMaxBodySize = 1 << 20

// ImageStore is the inventory surface the API needs
type ImageStore interface {
	Put(label string, image []byte) (*inventory.Entry, error)
	Get(id string) (*inventory.Entry, error)
	Image(id string) ([]byte, error)
	GetByUUID(uuid string) (*inventory.Entry, error)
	List() ([]*inventory.Entry, error)
	Delete(id string) error
}

var _ ImageStore = (*inventory.Store)(nil)
