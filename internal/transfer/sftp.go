// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/vignitin/apstra-commit-backup/internal/config"
	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
)

// dialTimeout bounds the SSH handshake.
const dialTimeout = 10 * time.Second

// sftpClient ships payloads over SFTP. It prefers key authentication when a
// key path is configured and the file exists, falling back to password
// authentication otherwise.
type sftpClient struct {
	cfg config.TransferConfig
}

// Transfer uploads the payload to the configured remote directory under a
// timestamped name.
func (c *sftpClient) Transfer(ctx context.Context, localPath, tag string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrTransferConnect, err)
	}
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errdefs.ErrTransferMissing, localPath, err)
	}
	defer local.Close()

	sshConfig, err := c.clientConfig()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") {
			return fmt.Errorf("%w: %v", errdefs.ErrTransferAuth, err)
		}
		return fmt.Errorf("%w: %v", errdefs.ErrTransferConnect, err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("%w: open sftp session: %v", errdefs.ErrTransferConnect, err)
	}
	defer client.Close()

	remoteDir, err := expandRemoteDir(client, c.cfg.RemoteDirectory)
	if err != nil {
		return err
	}
	if err := client.MkdirAll(remoteDir); err != nil {
		return fmt.Errorf("%w: create remote directory %s: %v", errdefs.ErrTransferConnect, remoteDir, err)
	}

	remotePath := path.Join(remoteDir, RemoteName(localPath, tag, time.Now()))
	logging.Infof("transferring via sftp: %s -> %s:%s", localPath, c.cfg.Host, remotePath)

	remote, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%w: create remote file %s: %v", errdefs.ErrTransferConnect, remotePath, err)
	}
	if _, err := io.Copy(remote, local); err != nil {
		remote.Close()
		client.Remove(remotePath)
		return fmt.Errorf("%w: upload %s: %v", errdefs.ErrTransferConnect, remotePath, err)
	}
	if err := remote.Close(); err != nil {
		return fmt.Errorf("%w: finalize %s: %v", errdefs.ErrTransferConnect, remotePath, err)
	}

	logging.Infof("sftp transfer completed successfully")
	return nil
}

// clientConfig assembles the SSH client configuration. Host keys are not
// verified: the retention target sits on the same management network as the
// controller and enrollment of host keys is out of scope here.
func (c *sftpClient) clientConfig() (*ssh.ClientConfig, error) {
	auth, err := c.authMethod()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            c.cfg.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}, nil
}

// authMethod picks key auth when the configured key exists, password auth
// otherwise.
func (c *sftpClient) authMethod() (ssh.AuthMethod, error) {
	if c.cfg.SSHKeyPath != "" {
		if pem, err := os.ReadFile(c.cfg.SSHKeyPath); err == nil {
			signer, err := parseKey(pem, c.cfg.SSHKeyPassphrase)
			if err != nil {
				return nil, fmt.Errorf("%w: parse ssh key %s: %v", errdefs.ErrTransferAuth, c.cfg.SSHKeyPath, err)
			}
			logging.Infof("using ssh key authentication with key: %s", c.cfg.SSHKeyPath)
			return ssh.PublicKeys(signer), nil
		}
		logging.Warnf("ssh key %s not readable, falling back to password auth", c.cfg.SSHKeyPath)
	}
	if c.cfg.Password == "" {
		return nil, fmt.Errorf("%w: no usable ssh key and no password", errdefs.ErrTransferConfig)
	}
	logging.Infof("using password authentication")
	return ssh.Password(c.cfg.Password), nil
}

func parseKey(pem []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(pem)
}

// expandRemoteDir resolves a leading ~ against the session's home
// directory, which is where an SFTP session starts.
func expandRemoteDir(client *sftp.Client, dir string) (string, error) {
	if dir == "" {
		dir = "~/"
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := client.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: resolve remote home: %v", errdefs.ErrTransferConnect, err)
		}
		return path.Join(home, strings.TrimPrefix(strings.TrimPrefix(dir, "~"), "/")), nil
	}
	return dir, nil
}
