// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package transfer ships resolved backup payloads to off-box retention
// storage. One Client interface covers the SFTP, FTP and S3 targets; the
// scheduler neither knows nor cares which one is configured.
package transfer

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/config"
	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
)

// Client moves one local payload to the retention target. The tag, when
// non-empty, is embedded in the remote filename.
type Client interface {
	Transfer(ctx context.Context, localPath, tag string) error
}

// NewClient builds the configured transfer client. Configuration gaps are
// reported as ErrTransferConfig here, before anything is attempted, so
// "never tried" stays distinguishable from runtime failures.
func NewClient(cfg config.TransferConfig) (Client, error) {
	var client Client
	switch cfg.Method {
	case "sftp":
		if cfg.Host == "" || cfg.Username == "" {
			return nil, fmt.Errorf("%w: sftp requires host and username", errdefs.ErrTransferConfig)
		}
		if cfg.SSHKeyPath == "" && cfg.Password == "" {
			return nil, fmt.Errorf("%w: sftp requires an ssh key or a password", errdefs.ErrTransferConfig)
		}
		client = &sftpClient{cfg: cfg}
	case "ftp":
		if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("%w: ftp requires host, username and password", errdefs.ErrTransferConfig)
		}
		client = &ftpClient{cfg: cfg}
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("%w: s3 requires a bucket", errdefs.ErrTransferConfig)
		}
		client = &s3Client{cfg: cfg}
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", errdefs.ErrTransferConfig, cfg.Method)
	}

	if cfg.Compress {
		client = &gzipClient{inner: client}
	}
	return client, nil
}

// RemoteName builds the remote filename for a payload: timestamp, then the
// tag when one is meaningful, then the payload's own name. The synthetic
// default blueprint arrives with an empty tag and gets no suffix.
func RemoteName(localPath, tag string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(localPath, "\\", "/"))
	stamp := now.Format("20060102-150405")
	if tag == "" {
		return fmt.Sprintf("%s-%s", stamp, base)
	}
	return fmt.Sprintf("%s-%s-%s", stamp, sanitizeTag(tag), base)
}

// sanitizeTag keeps remote filenames shell- and URL-friendly.
func sanitizeTag(tag string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, tag)
}
