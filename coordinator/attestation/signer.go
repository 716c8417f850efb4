package attestation

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// Signer produces registration claims. This runs on the node side; the
// coordinator only ever sees the resulting blobs.
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  []byte
}

// NewSigner wraps a private key and precomputes the public key blob.
func NewSigner(privateKey *rsa.PrivateKey) (*Signer, error) {
	pub, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("attestation: marshaling public key: %w", err)
	}
	return &Signer{privateKey: privateKey, publicKey: pub}, nil
}

// PublicKey returns the DER-encoded public key blob.
func (s *Signer) PublicKey() []byte {
	return s.publicKey
}

// SignRegistration signs the registration message for the given SGXt.
func (s *Signer) SignRegistration(sgxt int) ([]byte, error) {
	hashed := sha256.Sum256(RegistrationMessage(s.publicKey, sgxt))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("attestation: signing registration: %w", err)
	}
	return signature, nil
}
