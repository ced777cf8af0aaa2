package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketCode(t *testing.T) {
	code, err := TicketCode(42, 3)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "42-3-"))

	suffix := strings.TrimPrefix(code, "42-3-")
	assert.Len(t, suffix, 32)

	other, err := TicketCode(42, 3)
	assert.NoError(t, err)
	assert.NotEqual(t, code, other, "codes must not repeat for the same seat")
}

func TestHashRefreshRaw(t *testing.T) {
	h1 := HashRefreshRaw("secret-token")
	h2 := HashRefreshRaw("secret-token")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashRefreshRaw("other-token"))
}
