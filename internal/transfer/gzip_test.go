// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingClient struct {
	path string
	tag  string
}

func (c *capturingClient) Transfer(_ context.Context, localPath, tag string) error {
	c.path = localPath
	c.tag = tag
	return nil
}

func TestGzipClientPassesThroughCompressed(t *testing.T) {
	inner := &capturingClient{}
	client := &gzipClient{inner: inner}

	path := filepath.Join(t.TempDir(), "payload.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("already compressed"), 0o644))

	require.NoError(t, client.Transfer(context.Background(), path, "bp1"))
	assert.Equal(t, path, inner.path)
	assert.Equal(t, "bp1", inner.tag)
}

func TestGzipClientCompressesPlainPayload(t *testing.T) {
	inner := &capturingClient{}
	client := &gzipClient{inner: inner}

	path := filepath.Join(t.TempDir(), "payload.dat")
	require.NoError(t, os.WriteFile(path, []byte("uncompressed payload"), 0o644))

	require.NoError(t, client.Transfer(context.Background(), path, ""))
	assert.Equal(t, "payload.dat.gz", filepath.Base(inner.path))

	// The compressed copy was shipped then cleaned up; compress again to
	// verify the content survives the round trip.
	compressed, err := compressToTemp(path)
	require.NoError(t, err)
	defer os.Remove(compressed)

	f, err := os.Open(compressed)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	content, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "uncompressed payload", string(content))
}

func TestCompressToTempMissingSource(t *testing.T) {
	_, err := compressToTemp(filepath.Join(t.TempDir(), "missing.dat"))
	require.Error(t, err)
}
