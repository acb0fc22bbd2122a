package platform

import (
	"fmt"
	"net/http"
	"time"
)

// Default request budget when the caller does not supply a client.
const DefaultTimeout = 30 * time.Second

// RestrictedLimit is the page limit sent when unrestricted mode is off.
// UnrestrictedLimit asks the API for the full listing.
const (
	RestrictedLimit   = 100
	UnrestrictedLimit = -1
)

// Config configures a Client.
type Config struct {
	// Unrestricted requests the full bucket listing (limit=-1) instead of
	// the default page of 100.
	Unrestricted bool

	// RequestsPerSecond caps outbound API calls. Zero disables limiting.
	RequestsPerSecond float64

	// HTTPClient overrides the transport. Nil uses a client with
	// DefaultTimeout.
	HTTPClient *http.Client

	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must be >= 0, got %v", c.RequestsPerSecond)
	}
	return nil
}
