package broadcast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashgrove-labs/chat-service/internal/broadcast"
)

func TestShouldDiscard(t *testing.T) {
	assert.True(t, broadcast.ShouldDiscard("instance-a", "instance-a"))
	assert.False(t, broadcast.ShouldDiscard("instance-b", "instance-a"))
	assert.False(t, broadcast.ShouldDiscard("", "instance-a"))
}
