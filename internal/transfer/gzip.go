// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
)

// gzipClient wraps another client and compresses payloads that are not
// already gzip-compressed before handing them on. Snapshot payloads usually
// arrive as .tar.gz and pass through untouched.
type gzipClient struct {
	inner Client
}

func (c *gzipClient) Transfer(ctx context.Context, localPath, tag string) error {
	if strings.HasSuffix(localPath, ".gz") || strings.HasSuffix(localPath, ".tgz") {
		return c.inner.Transfer(ctx, localPath, tag)
	}

	compressed, err := compressToTemp(localPath)
	if err != nil {
		return err
	}
	defer os.Remove(compressed)

	logging.Debugf("compressed %s for transfer", localPath)
	return c.inner.Transfer(ctx, compressed, tag)
}

// compressToTemp gzips the payload into the temp directory, keeping the
// original base name with a .gz suffix so the remote filename stays
// recognizable.
func compressToTemp(localPath string) (string, error) {
	in, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", errdefs.ErrTransferMissing, localPath, err)
	}
	defer in.Close()

	outPath := filepath.Join(os.TempDir(), filepath.Base(localPath)+".gz")
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", errdefs.ErrTransferConnect, outPath, err)
	}

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("%w: compress %s: %v", errdefs.ErrTransferConnect, localPath, err)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("%w: finalize %s: %v", errdefs.ErrTransferConnect, outPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("%w: finalize %s: %v", errdefs.ErrTransferConnect, outPath, err)
	}
	return outPath, nil
}
