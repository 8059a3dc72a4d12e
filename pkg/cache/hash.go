package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// RenderKeyOpts holds every request field that changes the rendered bytes.
type RenderKeyOpts struct {
	Format string `json:"format"`
	Engine string `json:"engine"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// Keyer generates cache keys for rendered images.
type Keyer interface {
	// RenderKey returns the key for graph rendered with opts.
	RenderKey(graph string, opts RenderKeyOpts) string
}

// DefaultKeyer hashes the DOT source together with the render options.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RenderKey implements Keyer.
func (DefaultKeyer) RenderKey(graph string, opts RenderKeyOpts) string {
	return hashKey("render", Hash([]byte(graph)), opts)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...interface{}) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
