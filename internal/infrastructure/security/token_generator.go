package security

import (
	"github.com/ashgrove-labs/chat-service/internal/utils/random"
)

// sessionTokenBytes gives 256 bits of entropy per token.
const sessionTokenBytes = 32

// TokenGenerator produces opaque session tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

type randomTokenGenerator struct{}

// NewRandomTokenGenerator creates a TokenGenerator backed by crypto/rand.
func NewRandomTokenGenerator() TokenGenerator {
	return &randomTokenGenerator{}
}

func (g *randomTokenGenerator) Generate() (string, error) {
	return random.URLSafeString(sessionTokenBytes)
}

var _ TokenGenerator = (*randomTokenGenerator)(nil)
