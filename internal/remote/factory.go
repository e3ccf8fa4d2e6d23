package remote

import (
	"context"
	"fmt"
	"time"

	"dugsi-go/internal/config"
	"dugsi-go/internal/dugsi"
)

// NewRemoteFromConfig creates a Remote based on the remote config type.
// An empty type means sync is not configured; the caller gets (nil, nil)
// and runs purely offline.
func NewRemoteFromConfig(ctx context.Context, cfg config.RemoteConfig, log dugsi.Logger) (dugsi.Remote, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "hub":
		if cfg.HubURL == "" {
			return nil, fmt.Errorf("hub_url required for hub remote")
		}
		return NewHubRemote(cfg.HubURL, cfg.HubToken, log), nil
	case "s3":
		s3cfg := S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			Prefix:       cfg.S3Prefix,
			UsePathStyle: cfg.S3PathStyle,
		}
		if cfg.S3PollInterval != "" {
			d, err := time.ParseDuration(cfg.S3PollInterval)
			if err != nil {
				return nil, fmt.Errorf("parsing s3_poll_interval: %w", err)
			}
			s3cfg.PollInterval = d
		}
		return NewS3Remote(ctx, s3cfg, log)
	case "memory":
		return NewMemoryRemote(), nil
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}
