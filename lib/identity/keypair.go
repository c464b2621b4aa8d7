// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

const (
	privateKeyFile = "service-signing-key"
	publicKeyFile  = "service-signing-key.pub"
)

// Keypair holds a full Ed25519 keypair. The private key stays in this
// struct and in key files; records and wire messages carry only the
// PublicKey.
type Keypair struct {
	Public  PublicKey
	Private ed25519.PrivateKey
}

// Generate creates a new Ed25519 keypair.
func Generate() (Keypair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("identity: generating Ed25519 keypair: %w", err)
	}
	wrapped, err := FromRaw(public)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Public: wrapped, Private: private}, nil
}

// Sign returns the Ed25519 signature by kp over payload.
func (kp Keypair) Sign(payload []byte) []byte {
	return ed25519.Sign(kp.Private, payload)
}

// Save writes the keypair to stateDir. The private key file has 0600
// permissions; the public key file has 0644.
func (kp Keypair) Save(stateDir string) error {
	privatePath := filepath.Join(stateDir, privateKeyFile)
	if err := os.WriteFile(privatePath, kp.Private, 0600); err != nil {
		return fmt.Errorf("identity: writing private key: %w", err)
	}

	publicPath := filepath.Join(stateDir, publicKeyFile)
	if err := os.WriteFile(publicPath, kp.Public[:], 0644); err != nil {
		return fmt.Errorf("identity: writing public key: %w", err)
	}

	return nil
}

// Load reads a keypair from stateDir. Returns an error if either file
// is missing or has an unexpected size.
func Load(stateDir string) (Keypair, error) {
	privateBytes, err := os.ReadFile(filepath.Join(stateDir, privateKeyFile))
	if err != nil {
		return Keypair{}, fmt.Errorf("identity: reading private key: %w", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("identity: private key has %d bytes, want %d", len(privateBytes), ed25519.PrivateKeySize)
	}

	publicBytes, err := os.ReadFile(filepath.Join(stateDir, publicKeyFile))
	if err != nil {
		return Keypair{}, fmt.Errorf("identity: reading public key: %w", err)
	}
	public, err := FromRaw(publicBytes)
	if err != nil {
		return Keypair{}, err
	}

	return Keypair{Public: public, Private: ed25519.PrivateKey(privateBytes)}, nil
}

// LoadOrGenerate loads an existing keypair from stateDir, or generates
// and saves a new one if the key files do not exist. Returns the
// keypair and whether it was newly generated.
func LoadOrGenerate(stateDir string) (Keypair, bool, error) {
	kp, err := Load(stateDir)
	if err == nil {
		return kp, false, nil
	}

	// Missing files are the expected first-boot case. Anything else
	// (corruption, permissions, truncation) must surface.
	if _, statErr := os.Stat(filepath.Join(stateDir, privateKeyFile)); statErr == nil {
		return Keypair{}, false, err
	}

	kp, err = Generate()
	if err != nil {
		return Keypair{}, false, err
	}
	if err := kp.Save(stateDir); err != nil {
		return Keypair{}, false, err
	}
	return kp, true, nil
}
