package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainPayload separates payload digests from any other hash we compute.
// The version suffix leaves room for changing the algorithm later.
const DomainPayload = "musicsnap/payload/v1"

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadDigest returns a stable digest of a JSON payload.
// Insignificant whitespace is removed first, so a payload and its
// pretty-printed form hash identically.
func PayloadDigest(payload []byte) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return "", fmt.Errorf("payload digest: %w", err)
	}
	return hashWithDomain(DomainPayload, compact.Bytes()), nil
}
