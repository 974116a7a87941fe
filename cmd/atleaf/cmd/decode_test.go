package cmd

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atleaf/atleaf/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLeafInput(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_decode_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	t.Run("inline hex", func(t *testing.T) {
		data, err := readLeafInput("01ff", nil, false)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0xff}, data)
	})

	t.Run("inline hex ignores whitespace", func(t *testing.T) {
		data, err := readLeafInput("01 ff\n02", nil, false)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0xff, 0x02}, data)
	})

	t.Run("file input is binary", func(t *testing.T) {
		raw := []byte{0x00, 0x01, 0xfe, 0xff}
		path := filepath.Join(tmpDir, "leaf.bin")
		require.NoError(t, os.WriteFile(path, raw, 0600))

		data, err := readLeafInput("@"+path, nil, false)
		require.NoError(t, err)
		assert.Equal(t, raw, data)
	})

	t.Run("file input as hex text", func(t *testing.T) {
		path := filepath.Join(tmpDir, "leaf.hex")
		require.NoError(t, os.WriteFile(path, []byte("0A0B\n0C\n"), 0600))

		data, err := readLeafInput("@"+path, nil, true)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x0a, 0x0b, 0x0c}, data)
	})

	t.Run("stdin is binary", func(t *testing.T) {
		raw := []byte{0xde, 0xad, 0xbe, 0xef}
		data, err := readLeafInput("-", bytes.NewReader(raw), false)
		require.NoError(t, err)
		assert.Equal(t, raw, data)
	})

	t.Run("stdin as hex text", func(t *testing.T) {
		data, err := readLeafInput("-", bytes.NewReader([]byte("deadbeef")), true)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, err := readLeafInput("zz-not-hex", nil, false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid hex input")
	})

	t.Run("empty hex", func(t *testing.T) {
		_, err := readLeafInput("  \n", nil, false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "empty input")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readLeafInput("@"+filepath.Join(tmpDir, "nope.bin"), nil, false)
		assert.Error(t, err)
	})
}

func TestUint8List(t *testing.T) {
	values, err := uint8List([]int{0, 1, 255})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 255}, values)

	_, err = uint8List([]int{256})
	assert.Error(t, err)

	_, err = uint8List([]int{-1})
	assert.Error(t, err)
}

func TestNewRecordDocument(t *testing.T) {
	expiry := time.Date(2031, 3, 14, 0, 0, 0, 0, time.UTC)
	rec := codec.NewRecord(1, []byte("macOS build 24F74"), []byte{0xAA, 0xBB}, expiry)
	rec.AddExtension(9, []byte("asset"))

	doc := newRecordDocument(rec)

	assert.Equal(t, uint8(1), doc.Version)
	assert.Equal(t, uint8(1), doc.Type)
	assert.Equal(t, "macOS build 24F74", doc.Description)
	assert.Equal(t, "aabb", doc.Hash)
	assert.Equal(t, expiry, doc.Expiry)
	assert.False(t, doc.Expired)
	assert.Equal(t, rec.Size(), doc.Size)

	require.Len(t, doc.Extensions, 1)
	assert.Equal(t, uint8(9), doc.Extensions[0].Type)
	assert.Equal(t, 5, doc.Extensions[0].Size)
	assert.Equal(t, hex.EncodeToString([]byte("asset")), doc.Extensions[0].Data)
}

func TestNewRecordDocument_Expired(t *testing.T) {
	rec := codec.NewRecord(1, nil, nil, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, newRecordDocument(rec).Expired)
}
