// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vignitin/apstra-commit-backup/internal/config"
	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
)

func TestNewClientSFTP(t *testing.T) {
	client, err := NewClient(config.TransferConfig{
		Method:   "sftp",
		Host:     "backup.example.com",
		Username: "backup",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.IsType(t, &sftpClient{}, client)
}

func TestNewClientSFTPKeyOnly(t *testing.T) {
	client, err := NewClient(config.TransferConfig{
		Method:     "sftp",
		Host:       "backup.example.com",
		Username:   "backup",
		SSHKeyPath: "/home/backup/.ssh/id_ed25519",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClientSFTPMissingAuth(t *testing.T) {
	_, err := NewClient(config.TransferConfig{
		Method:   "sftp",
		Host:     "backup.example.com",
		Username: "backup",
	})
	require.ErrorIs(t, err, errdefs.ErrTransferConfig)
}

func TestNewClientSFTPMissingHost(t *testing.T) {
	_, err := NewClient(config.TransferConfig{Method: "sftp", Username: "backup", Password: "x"})
	require.ErrorIs(t, err, errdefs.ErrTransferConfig)
}

func TestNewClientFTP(t *testing.T) {
	client, err := NewClient(config.TransferConfig{
		Method:   "ftp",
		Host:     "ftp.example.com",
		Username: "backup",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.IsType(t, &ftpClient{}, client)

	_, err = NewClient(config.TransferConfig{Method: "ftp", Host: "ftp.example.com", Username: "backup"})
	assert.ErrorIs(t, err, errdefs.ErrTransferConfig)
}

func TestNewClientS3(t *testing.T) {
	client, err := NewClient(config.TransferConfig{
		Method: "s3",
		S3:     config.S3Config{Bucket: "backups"},
	})
	require.NoError(t, err)
	assert.IsType(t, &s3Client{}, client)

	_, err = NewClient(config.TransferConfig{Method: "s3"})
	assert.ErrorIs(t, err, errdefs.ErrTransferConfig)
}

func TestNewClientUnsupportedMethod(t *testing.T) {
	_, err := NewClient(config.TransferConfig{Method: "carrier-pigeon"})
	require.ErrorIs(t, err, errdefs.ErrTransferConfig)
}

func TestNewClientCompressWraps(t *testing.T) {
	client, err := NewClient(config.TransferConfig{
		Method:   "ftp",
		Host:     "ftp.example.com",
		Username: "backup",
		Password: "secret",
		Compress: true,
	})
	require.NoError(t, err)
	assert.IsType(t, &gzipClient{}, client)
}

func TestRemoteName(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 5, 0, time.UTC)

	assert.Equal(t, "20260828-143005-aos.data.tar.gz",
		RemoteName("/var/lib/aos/snapshot/x/aos.data.tar.gz", "", now))
	assert.Equal(t, "20260828-143005-bp1-aos.data.tar.gz",
		RemoteName("/tmp/aos.data.tar.gz", "bp1", now))
	assert.Equal(t, "20260828-143005-2_blueprints_changed-backup.tgz",
		RemoteName("/tmp/backup.tgz", "2_blueprints_changed", now))
}

func TestRemoteNameSanitizesTag(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 5, 0, time.UTC)
	got := RemoteName("/tmp/b.tar.gz", "bp one/two", now)
	assert.Equal(t, "20260828-143005-bp_one_two-b.tar.gz", got)
}
