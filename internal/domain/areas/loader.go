// Package areas loads and queries the province/district/subdistrict
// reference directory used to assist address entry on the intake form.
package areas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Errors returned by Fetch.
var (
	ErrEmptySource    = errors.New("directory source is empty")
	ErrBadStatus      = errors.New("directory request failed")
	ErrInvalidS3URI   = errors.New("invalid s3 uri")
	ErrMissingRegions = errors.New("directory has no provinces")
)

// ObjectGetter is the subset of the S3 client used to read the directory.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader fetches the directory from a local file, an HTTP(S) URL or an
// s3://bucket/key object.
type Loader struct {
	httpClient *http.Client
	s3         ObjectGetter
	logger     zerolog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient overrides the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// WithS3 sets the client used for s3:// sources. Without it a client is
// built from the default AWS configuration on first use.
func WithS3(c ObjectGetter) Option {
	return func(l *Loader) { l.s3 = c }
}

// NewLoader creates a Loader.
func NewLoader(logger zerolog.Logger, opts ...Option) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the directory and degrades to an empty directory on any
// failure. The failure is logged and never retried.
func (l *Loader) Load(ctx context.Context, source string) *Directory {
	dir, err := l.Fetch(ctx, source)
	if err != nil {
		l.logger.Warn().Err(err).Str("source", source).Msg("area directory unavailable, address assistance disabled")
		return &Directory{}
	}
	l.logger.Info().Str("source", source).Int("provinces", len(dir.Provinces)).Msg("area directory loaded")
	return dir
}

// Fetch reads and decodes the directory at source.
func (l *Loader) Fetch(ctx context.Context, source string) (*Directory, error) {
	if source == "" {
		return nil, ErrEmptySource
	}

	var (
		body io.ReadCloser
		name string
		err  error
	)
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		body, err = l.openHTTP(ctx, source)
		name = source
	case strings.HasPrefix(source, "s3://"):
		var key string
		body, key, err = l.openS3(ctx, source)
		name = key
	default:
		body, err = os.Open(source)
		name = source
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return Decode(body, path.Ext(strings.SplitN(name, "?", 2)[0]))
}

// Decode parses a directory document. ext selects YAML for ".yaml"/".yml";
// anything else is treated as JSON.
func Decode(r io.Reader, ext string) (*Directory, error) {
	var dir Directory
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&dir); err != nil {
			return nil, fmt.Errorf("decode yaml directory: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&dir); err != nil {
			return nil, fmt.Errorf("decode json directory: %w", err)
		}
	}
	if len(dir.Provinces) == 0 {
		return nil, ErrMissingRegions
	}
	return &dir, nil
}

func (l *Loader) openHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrBadStatus, url, resp.StatusCode)
	}
	return resp.Body, nil
}

func (l *Loader) openS3(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, "", err
	}

	client := l.s3
	if client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("load aws config: %w", err)
		}
		client = s3.New(s3.Options{
			Region:       cfg.Region,
			Credentials:  cfg.Credentials,
			HTTPClient:   cfg.HTTPClient,
			BaseEndpoint: cfg.BaseEndpoint,
			UsePathStyle: true,
		})
		l.s3 = client
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, "", fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, key, nil
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidS3URI, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidS3URI, uri)
	}
	return bucket, key, nil
}
