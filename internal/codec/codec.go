// Package codec decodes and encodes the wire envelope for log ingestion.
// Payloads arrive either as plaintext JSON batches or as signed (optionally
// gzip-compressed) envelopes that are verified against the sender's
// registered public key.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/sign"

	"github.com/kailas-cloud/logweave/internal/domain"
	"github.com/kailas-cloud/logweave/internal/keystore"
)

// Codec translates between raw request bodies and wire record batches.
type Codec struct {
	keys   keystore.Store
	logger *zap.Logger
}

// New creates a codec backed by the given key store.
func New(keys keystore.Store, logger *zap.Logger) *Codec {
	return &Codec{keys: keys, logger: logger}
}

// Decode parses a request body into a batch of wire records. The returned
// client ID is authenticated for encrypted payloads (the signature verified
// against the key registered for the envelope's client_id) and empty for
// plaintext ones; attribution of plaintext batches is the caller's policy.
//
// A content type of domain.ContentTypeEncrypted selects the envelope path;
// anything else is treated as plaintext JSON.
func (c *Codec) Decode(contentType string, raw []byte) (domain.Batch, string, error) {
	if contentType == domain.ContentTypeEncrypted {
		return c.decodeEnvelope(raw)
	}

	batch, err := parseBatch(raw)
	if err != nil {
		return domain.Batch{}, "", err
	}
	return batch, "", nil
}

func (c *Codec) decodeEnvelope(raw []byte) (domain.Batch, string, error) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Batch{}, "", fmt.Errorf("parse envelope: %v: %w", err, domain.ErrDecode)
	}
	if env.ClientID == "" {
		return domain.Batch{}, "", fmt.Errorf("envelope has no client_id: %w", domain.ErrAuthentication)
	}

	publicKey, ok := c.keys.PublicKey(env.ClientID)
	if !ok {
		// Fail closed: unknown clients are never auto-provisioned.
		return domain.Batch{}, "", fmt.Errorf("no key registered for client %q: %w",
			env.ClientID, domain.ErrAuthentication)
	}

	signed, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return domain.Batch{}, "", fmt.Errorf("decode envelope data: %v: %w", err, domain.ErrDecode)
	}

	plaintext, verified := sign.Open(nil, signed, publicKey)
	if !verified {
		return domain.Batch{}, "", fmt.Errorf("signature verification failed for client %q: %w",
			env.ClientID, domain.ErrAuthentication)
	}

	// Decompression happens after verification, never on unauthenticated bytes.
	if env.Compressed {
		plaintext, err = gunzip(plaintext)
		if err != nil {
			return domain.Batch{}, "", err
		}
	}

	batch, err := parseBatch(plaintext)
	if err != nil {
		return domain.Batch{}, "", err
	}

	c.logger.Debug("decoded signed envelope",
		zap.String("client_id", env.ClientID),
		zap.Int("records", len(batch.Records)),
		zap.Bool("compressed", env.Compressed),
	)
	return batch, env.ClientID, nil
}

// Encode signs (and optionally compresses) a batch for a client whose
// private key is registered. Test and demo tooling; production clients sign
// on their own side.
func (c *Codec) Encode(batch domain.Batch, clientID string, compress bool) (domain.Envelope, error) {
	privateKey, ok := c.keys.PrivateKey(clientID)
	if !ok {
		return domain.Envelope{}, fmt.Errorf("no private key registered for client %q: %w",
			clientID, domain.ErrAuthentication)
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("marshal batch: %w", err)
	}

	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return domain.Envelope{}, fmt.Errorf("compress batch: %w", err)
		}
		if err := zw.Close(); err != nil {
			return domain.Envelope{}, fmt.Errorf("compress batch: %w", err)
		}
		payload = buf.Bytes()
	}

	signed := sign.Sign(nil, payload, privateKey)

	return domain.Envelope{
		ClientID:   clientID,
		Timestamp:  time.Now().UnixMilli(),
		Version:    1,
		Algorithm:  domain.AlgorithmNaClSign,
		Data:       base64.StdEncoding.EncodeToString(signed),
		Compressed: compress,
	}, nil
}

func parseBatch(raw []byte) (domain.Batch, error) {
	var batch domain.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return domain.Batch{}, fmt.Errorf("parse log batch: %v: %w", err, domain.ErrDecode)
	}
	return batch, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip payload: %v: %w", err, domain.ErrDecode)
	}
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %v: %w", err, domain.ErrDecode)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("decompress payload: %v: %w", err, domain.ErrDecode)
	}
	return out, nil
}
