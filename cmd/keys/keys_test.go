package keys

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelifecycle/src/security"
)

func TestSealAndOpen(t *testing.T) {
	var sealed bytes.Buffer
	require.NoError(t, Seal(&sealed, "  binance-secret \n"))
	assert.NotContains(t, sealed.String(), "binance-secret")

	var plain bytes.Buffer
	require.NoError(t, Open(&plain, sealed.String()))
	assert.Equal(t, "binance-secret\n", plain.String())
}

func TestOpen_Invalid(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, Open(&out, "not-base64!"))
	require.ErrorIs(t, Open(&out, "  "), ErrEmptyInput)
}

func TestHashToken(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, HashToken(&out, "operator-token"))

	hash := strings.TrimSpace(out.String())
	assert.True(t, security.CheckToken(hash, "operator-token"))
	assert.False(t, security.CheckToken(hash, "other"))

	require.ErrorIs(t, HashToken(&out, ""), ErrEmptyInput)
	require.ErrorIs(t, Seal(&out, ""), ErrEmptyInput)
}
