package qrcode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestGenerate(t *testing.T) {
	png, err := Generate("vless://example@host:8080", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestGenerate_EmptyContent(t *testing.T) {
	_, err := Generate("   ", 128)
	assert.ErrorIs(t, err, ErrEmptyContent)
}
