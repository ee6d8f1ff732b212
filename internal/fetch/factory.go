package fetch

import (
	"context"
	"fmt"
	"log/slog"
)

// NewS3Factory returns a Factory for S3-backed chunk sources.
//
// Params: bucket (required), region, endpoint, path_style ("true"),
// access_key, secret_key.
func NewS3Factory() Factory {
	return func(ctx context.Context, params map[string]string, logger *slog.Logger) (Opener, error) {
		bucket := params["bucket"]
		if bucket == "" {
			return nil, fmt.Errorf("s3 source: bucket param is required")
		}
		return NewS3(ctx, S3Config{
			Bucket:    bucket,
			Region:    params["region"],
			Endpoint:  params["endpoint"],
			PathStyle: params["path_style"] == "true",
			AccessKey: params["access_key"],
			SecretKey: params["secret_key"],
			Logger:    logger,
		})
	}
}

// NewLocalFactory returns a Factory for filesystem-backed chunk sources.
//
// Params: root (required).
func NewLocalFactory() Factory {
	return func(ctx context.Context, params map[string]string, logger *slog.Logger) (Opener, error) {
		root := params["root"]
		if root == "" {
			return nil, fmt.Errorf("local source: root param is required")
		}
		return NewLocal(root, logger)
	}
}
