package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
)

// Config holds the node's identity and connection settings.
type Config struct {
	ServerAddr string
	SGXt       int
	PrivateKey *rsa.PrivateKey
}

// LoadConfig initializes the node configuration: server address and
// declared SGXt from the environment, identity key loaded from
// ~/.poet-agent or generated on first run.
func LoadConfig() *Config {
	cfg := &Config{
		ServerAddr: "localhost:9000",
		SGXt:       0,
	}
	if addr := os.Getenv("POET_SERVER_ADDR"); addr != "" {
		cfg.ServerAddr = addr
	}
	if s := os.Getenv("POET_AGENT_SGXT"); s != "" {
		fmt.Sscanf(s, "%d", &cfg.SGXt)
	}
	if cfg.SGXt <= 0 {
		cfg.SGXt = randomSGXt(1, 100)
	}

	key, err := getOrCreateKey()
	if err != nil {
		log.Fatalf("Failed to initialize identity key: %v", err)
	}
	cfg.PrivateKey = key
	return cfg
}

// getOrCreateKey loads the node's RSA identity from disk or generates
// and persists a fresh one.
func getOrCreateKey() (*rsa.PrivateKey, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".poet-agent")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	keyPath := filepath.Join(configDir, "identity.pem")

	if data, err := os.ReadFile(keyPath); err == nil {
		block, _ := pem.Decode(data)
		if block != nil {
			if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
				return key, nil
			}
		}
		log.Printf("Warning: could not parse %s, generating a new key", keyPath)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity key: %w", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(keyPath, pemBytes, 0600); err != nil {
		return nil, fmt.Errorf("failed to save identity key to %s: %w", keyPath, err)
	}
	return key, nil
}

// randomSGXt draws a declared budget from [min, max].
func randomSGXt(min, max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return min
	}
	return min + int(n.Int64())
}
