package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainPortal separates portal fingerprints from any other hash of the
// same bytes. The version suffix allows migrating the algorithm.
const DomainPortal = "chronorm/portal/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the hex sha256 of the canonical form of p together
// with the IR version.
func Fingerprint(p PortalSpec) (string, error) {
	canonical, err := MarshalCanonical(struct {
		Version string     `json:"ir_version"`
		Portal  PortalSpec `json:"portal"`
	}{IRVersion, p})
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", p.Name, err)
	}
	return hashWithDomain(DomainPortal, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(p PortalSpec) string {
	fp, err := Fingerprint(p)
	if err != nil {
		panic(err)
	}
	return fp
}
