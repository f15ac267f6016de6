package util

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
)

// Decrypt reverses Encrypt: key is a 16/24/32-byte AES key, enc is the
// hex-encoded "nonce || ciphertext" produced at encryption time. Used by
// cmd/orbitald to recover the solver/operator private key from an
// environment-provided ciphertext, matching the teacher's cmd/main.go
// ENC_PK/KEY bootstrap.
func Decrypt(key []byte, enc string) (string, error) {
	ciphertext, err := hex.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
