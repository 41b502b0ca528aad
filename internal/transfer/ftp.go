// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/vignitin/apstra-commit-backup/internal/config"
	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
)

// ftpClient ships payloads over plain FTP. Kept for retention targets that
// predate SSH access; SFTP is the preferred method.
type ftpClient struct {
	cfg config.TransferConfig
}

// Transfer uploads the payload into the configured remote directory,
// creating missing path segments one level at a time.
func (c *ftpClient) Transfer(ctx context.Context, localPath, tag string) error {
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errdefs.ErrTransferMissing, localPath, err)
	}
	defer local.Close()

	port := c.cfg.Port
	if port == 0 || port == 22 {
		port = 21
	}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(port))
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(dialTimeout))
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrTransferConnect, err)
	}
	defer conn.Quit()

	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrTransferAuth, err)
	}

	if err := c.enterRemoteDir(conn); err != nil {
		return err
	}

	remoteName := RemoteName(localPath, tag, time.Now())
	logging.Infof("transferring via ftp: %s -> %s:%s/%s", localPath, c.cfg.Host, c.cfg.RemoteDirectory, remoteName)
	if err := conn.Stor(remoteName, local); err != nil {
		return fmt.Errorf("%w: upload %s: %v", errdefs.ErrTransferConnect, remoteName, err)
	}

	logging.Infof("ftp transfer completed successfully")
	return nil
}

// enterRemoteDir changes into the configured directory, creating each
// missing segment on the way down.
func (c *ftpClient) enterRemoteDir(conn *ftp.ServerConn) error {
	dir := c.cfg.RemoteDirectory
	if dir == "" || dir == "." || dir == "~/" {
		return nil
	}
	if err := conn.ChangeDir(dir); err == nil {
		return nil
	}

	logging.Warnf("remote directory %s missing, attempting to create", dir)
	for _, segment := range strings.Split(dir, "/") {
		if segment == "" {
			continue
		}
		if err := conn.ChangeDir(segment); err != nil {
			if err := conn.MakeDir(segment); err != nil {
				return fmt.Errorf("%w: create remote directory %s: %v", errdefs.ErrTransferConnect, segment, err)
			}
			if err := conn.ChangeDir(segment); err != nil {
				return fmt.Errorf("%w: enter remote directory %s: %v", errdefs.ErrTransferConnect, segment, err)
			}
		}
	}
	return nil
}
