package logweave

import "net/http"

type clientConfig struct {
	endpoint   string
	apiKey     string
	clientID   string
	privateKey *[64]byte
	seed       string
	compress   bool
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*clientConfig)

// WithEndpoint sets the server base URL, e.g. "https://logs.example.com".
// Required.
func WithEndpoint(endpoint string) Option {
	return func(c *clientConfig) { c.endpoint = endpoint }
}

// WithAPIKey sets the Bearer token for the query endpoints. Shipping does
// not need it.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) { c.apiKey = key }
}

// WithSigningKey enables signed envelopes using an existing 64-byte
// private signing key registered server-side under clientID.
func WithSigningKey(clientID string, privateKey *[64]byte) Option {
	return func(c *clientConfig) {
		c.clientID = clientID
		c.privateKey = privateKey
	}
}

// WithDemoSeed enables signed envelopes with a key pair derived
// deterministically from seed, matching a server configured with the same
// demo seed. Development and testing only.
func WithDemoSeed(seed string) Option {
	return func(c *clientConfig) {
		c.clientID = seed
		c.seed = seed
	}
}

// WithCompression gzips payloads before signing. Only applies to signed
// envelopes.
func WithCompression(enabled bool) Option {
	return func(c *clientConfig) { c.compress = enabled }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}
