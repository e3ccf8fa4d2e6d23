package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"dugsi-go/internal/dugsi"
)

// S3Config configures the S3 remote.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // for S3-compatible services (MinIO, etc.)
	// AccessKeyID/SecretAccessKey authenticate when set. Prefer IAM roles
	// or the AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY environment
	// variables; never commit credentials to source control.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // key prefix for all objects
	UsePathStyle    bool
	// PollInterval is how often Watch re-reads the document. S3 has no
	// change notifications over plain GET, so watching is polling.
	PollInterval time.Duration
}

// S3Remote stores each principal's document as one JSON object in an S3
// bucket. Change observation is by polling, so two devices converge within
// one poll interval rather than immediately.
type S3Remote struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	log      dugsi.Logger
}

var _ dugsi.Remote = (*S3Remote)(nil)

// NewS3Remote creates an S3-backed remote.
func NewS3Remote(ctx context.Context, cfg S3Config, log dugsi.Logger) (*S3Remote, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if log == nil {
		log = dugsi.NewNopLogger()
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &S3Remote{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		log:      log,
	}, nil
}

func (r *S3Remote) key(principal string) string {
	return r.cfg.Prefix + principal + "/snapshot.json"
}

// Load fetches the principal's document, or (nil, nil) when absent.
func (r *S3Remote) Load(ctx context.Context, principal string) (*dugsi.Document, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(r.key(principal)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	var doc dugsi.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return &doc, nil
}

// Put replaces the principal's document.
func (r *S3Remote) Put(ctx context.Context, principal string, doc dugsi.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	_, err = r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.cfg.Bucket),
		Key:         aws.String(r.key(principal)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading document: %w", err)
	}
	return nil
}

// Watch polls the principal's document at the configured interval and
// delivers an event whenever the stored version changes. The current state
// is delivered immediately as the first event.
func (r *S3Remote) Watch(ctx context.Context, principal string) (<-chan dugsi.WatchEvent, func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	ch := make(chan dugsi.WatchEvent, 16)

	go func() {
		defer close(ch)

		var lastSeen int64 = -1
		poll := func() {
			doc, err := r.Load(watchCtx, principal)
			if err != nil {
				if watchCtx.Err() != nil {
					return
				}
				select {
				case ch <- dugsi.WatchEvent{Err: err}:
				default:
				}
				return
			}

			version := int64(0)
			if doc != nil {
				version = doc.Version
			}
			if version == lastSeen {
				return
			}
			lastSeen = version

			select {
			case ch <- dugsi.WatchEvent{Doc: doc}:
			case <-watchCtx.Done():
			}
		}

		poll()
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	return ch, cancel, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	// Some S3-compatible services report a bare 404 instead of NoSuchKey.
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404")
}
