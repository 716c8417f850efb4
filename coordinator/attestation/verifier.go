// Package attestation verifies the signed registration claims nodes
// present. Public keys and signatures travel as opaque byte blobs; when
// verification is not required they are accepted as-is, otherwise the
// blob must be a DER-encoded RSA public key and the signature a
// PKCS#1 v1.5 signature over the registration message.
package attestation

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
)

// Verifier checks registration claims.
type Verifier struct {
	required bool
}

// NewVerifier creates a verifier. With required false the blobs are
// treated as opaque and every claim passes.
func NewVerifier(required bool) *Verifier {
	return &Verifier{required: required}
}

// RegistrationMessage is the canonical byte string a node signs when
// registering: its hex-encoded public key bound to the declared SGXt.
func RegistrationMessage(publicKey []byte, sgxt int) []byte {
	return []byte(fmt.Sprintf("register:%s:%d", hex.EncodeToString(publicKey), sgxt))
}

// VerifyRegistration checks the signature over the registration
// message. An empty key or signature fails when verification is
// required.
func (v *Verifier) VerifyRegistration(publicKey, signature []byte, sgxt int) error {
	if !v.required {
		return nil
	}
	if len(publicKey) == 0 || len(signature) == 0 {
		return errors.New("attestation: missing public key or signature")
	}

	parsed, err := x509.ParsePKIXPublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("attestation: parsing public key: %w", err)
	}
	rsaPub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return errors.New("attestation: not an RSA public key")
	}

	hashed := sha256.Sum256(RegistrationMessage(publicKey, sgxt))
	if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, hashed[:], signature); err != nil {
		log.Printf("[ATTESTATION] Verification failed: %v", err)
		return fmt.Errorf("attestation: signature verification failed: %w", err)
	}
	return nil
}

// Required reports whether claims are actually checked.
func (v *Verifier) Required() bool {
	return v.required
}
