package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/video2gif/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionCursor(t *testing.T) {
	cursor := &storage.ConversionCursor{
		CreatedAt: time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC),
		ID:        "0b7e4c1a-8d6f-4c1e-9a63-2f4f0f3f6a11",
	}

	decoded, err := DecodeConversionCursor(EncodeConversionCursor(cursor))
	require.NoError(t, err)
	assert.Equal(t, cursor, decoded)

	empty, err := DecodeConversionCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	invalid := []string{
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("abc|0b7e4c1a-8d6f-4c1e-9a63-2f4f0f3f6a11")),
		base64.RawURLEncoding.EncodeToString([]byte("1714566600000000000|not-a-uuid")),
	}
	for _, s := range invalid {
		_, err := DecodeConversionCursor(s)
		assert.Error(t, err, s)
	}
}
