package ticket

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// ParsePrivateKey accepts a PKCS#1 or PKCS#8 PEM encoded RSA private key.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// ParsePublicKey accepts a PKIX, PKCS#1 or certificate PEM encoded RSA public key.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// GenerateKeyPair returns a new PKCS#8 private key and its PKIX public key, both PEM encoded.
func GenerateKeyPair(bits int) (privPEM, pubPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate rsa key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}

	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, nil
}

// KeyCache memoizes parsed keys by PEM content so that per-request config
// resolution does not re-parse the same key material.
type KeyCache struct {
	mu   sync.RWMutex
	priv map[[sha256.Size]byte]*rsa.PrivateKey
	pub  map[[sha256.Size]byte]*rsa.PublicKey
}

func NewKeyCache() *KeyCache {
	return &KeyCache{
		priv: make(map[[sha256.Size]byte]*rsa.PrivateKey),
		pub:  make(map[[sha256.Size]byte]*rsa.PublicKey),
	}
}

func (c *KeyCache) PrivateKey(data []byte) (*rsa.PrivateKey, error) {
	sum := sha256.Sum256(data)

	c.mu.RLock()
	key, ok := c.priv[sum]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.priv[sum] = key
	c.mu.Unlock()
	return key, nil
}

func (c *KeyCache) PublicKey(data []byte) (*rsa.PublicKey, error) {
	sum := sha256.Sum256(data)

	c.mu.RLock()
	key, ok := c.pub[sum]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	key, err := ParsePublicKey(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pub[sum] = key
	c.mu.Unlock()
	return key, nil
}
