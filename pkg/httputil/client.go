package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds a whole request to a render server, including
// reading the image body.
const DefaultTimeout = 60 * time.Second

// NewHTTPClient returns an HTTP client with [DefaultTimeout].
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}
