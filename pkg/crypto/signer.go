// Package crypto signs execution receipts with ed25519 keys kept on disk.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Alg is the only signature algorithm produced.
const Alg = "ed25519"

// Signature is a detached signature over a canonical payload.
type Signature struct {
	Alg   string `json:"alg"`
	KeyID string `json:"key_id"`
	Sig   string `json:"sig"`
}

// Validate checks that every field is present and the algorithm is known.
func (s *Signature) Validate() error {
	if s == nil {
		return errors.New("signature required")
	}
	if s.Alg != Alg {
		return fmt.Errorf("unsupported signature alg %q", s.Alg)
	}
	if s.KeyID == "" {
		return errors.New("signature key_id required")
	}
	if s.Sig == "" {
		return errors.New("signature value required")
	}
	return nil
}

// Signer holds one named key pair.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	keyID      string
}

// LoadSigner reads <keyDir>/<keyID>.key, generating and persisting a new
// key when the file does not exist.
func LoadSigner(keyDir, keyID string) (*Signer, error) {
	if keyID == "" {
		return nil, errors.New("key id required")
	}
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, err
	}
	keyPath := filepath.Join(keyDir, keyID+".key")

	data, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		if len(data) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid private key size in %s", keyPath)
		}
	case errors.Is(err, os.ErrNotExist):
		_, priv, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, genErr
		}
		if err := os.WriteFile(keyPath, priv, 0600); err != nil {
			return nil, err
		}
		data = priv
	default:
		return nil, err
	}

	priv := ed25519.PrivateKey(data)
	return &Signer{
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
		keyID:      keyID,
	}, nil
}

// KeyID returns the name the key was loaded under.
func (s *Signer) KeyID() string { return s.keyID }

// PublicKey returns the verification key.
func (s *Signer) PublicKey() ed25519.PublicKey { return s.publicKey }

// Sign signs payload.
func (s *Signer) Sign(payload []byte) *Signature {
	return &Signature{
		Alg:   Alg,
		KeyID: s.keyID,
		Sig:   base64.StdEncoding.EncodeToString(ed25519.Sign(s.privateKey, payload)),
	}
}

// Verify checks sig over payload against pub.
func Verify(pub ed25519.PublicKey, payload []byte, sig *Signature) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(sig.Sig)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if !ed25519.Verify(pub, payload, raw) {
		return errors.New("invalid signature")
	}
	return nil
}

// LoadPublicKey derives the public key stored under keyDir for keyID.
func LoadPublicKey(keyDir, keyID string) (ed25519.PublicKey, error) {
	if keyID == "" {
		return nil, errors.New("key id required")
	}
	data, err := os.ReadFile(filepath.Join(keyDir, keyID+".key"))
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return ed25519.PrivateKey(data).Public().(ed25519.PublicKey), nil
}
