package domain

// ContentTypeEncrypted marks a request body carrying an Envelope.
// Everything else is treated as plaintext JSON.
const ContentTypeEncrypted = "application/json+encrypted"

// AlgorithmNaClSign is the only supported envelope algorithm: an Ed25519
// signed message (signature prepended to the plaintext).
const AlgorithmNaClSign = "nacl.signing"

// Envelope is the signed wire wrapper carrying a log batch plus client
// identity and crypto metadata. Produced by a client, consumed once, never
// persisted verbatim.
type Envelope struct {
	ClientID   string `json:"client_id"`
	Timestamp  int64  `json:"timestamp"`
	Version    int    `json:"version"`
	Algorithm  string `json:"algorithm"`
	Nonce      string `json:"nonce"` // base64; unused by nacl.signing, kept for format compatibility
	Data       string `json:"data"`  // base64 signed payload
	Compressed bool   `json:"compressed"`
}
