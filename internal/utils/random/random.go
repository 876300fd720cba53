package random

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Bytes generates length cryptographically random bytes.
func Bytes(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// URLSafeString generates a URL-safe base64 string from length random bytes.
// The output carries the full entropy of the input bytes.
func URLSafeString(length int) (string, error) {
	b, err := Bytes(length)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b), nil
}

// Hex generates a hex string from length random bytes.
func Hex(length int) (string, error) {
	b, err := Bytes(length)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
