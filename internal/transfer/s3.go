// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vignitin/apstra-commit-backup/internal/config"
	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
)

// s3Client ships payloads to an S3 (or S3-compatible) bucket. Static
// credentials come from the environment; without them the default AWS
// credential chain applies.
type s3Client struct {
	cfg config.TransferConfig
	api *s3.Client
}

// Transfer uploads the payload as one object under the configured prefix.
func (c *s3Client) Transfer(ctx context.Context, localPath, tag string) error {
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errdefs.ErrTransferMissing, localPath, err)
	}
	defer local.Close()

	api, err := c.client(ctx)
	if err != nil {
		return err
	}

	key := RemoteName(localPath, tag, time.Now())
	if c.cfg.S3.Prefix != "" {
		key = path.Join(c.cfg.S3.Prefix, key)
	}

	logging.Infof("transferring via s3: %s -> s3://%s/%s", localPath, c.cfg.S3.Bucket, key)
	_, err = api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.cfg.S3.Bucket,
		Key:    &key,
		Body:   local,
	})
	if err != nil {
		if strings.Contains(err.Error(), "AccessDenied") || strings.Contains(err.Error(), "InvalidAccessKeyId") || strings.Contains(err.Error(), "SignatureDoesNotMatch") {
			return fmt.Errorf("%w: %v", errdefs.ErrTransferAuth, err)
		}
		return fmt.Errorf("%w: %v", errdefs.ErrTransferConnect, err)
	}

	logging.Infof("s3 transfer completed successfully")
	return nil
}

// client lazily builds the SDK client so construction failures surface as
// transfer failures of the right class, not at startup.
func (c *s3Client) client(ctx context.Context) (*s3.Client, error) {
	if c.api != nil {
		return c.api, nil
	}

	region := c.cfg.S3.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if c.cfg.S3.AccessKey != "" && c.cfg.S3.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.cfg.S3.AccessKey, c.cfg.S3.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", errdefs.ErrTransferConfig, err)
	}

	endpoint := c.cfg.S3.Endpoint
	c.api = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = c.cfg.S3.ForcePathStyle
	})
	return c.api, nil
}
