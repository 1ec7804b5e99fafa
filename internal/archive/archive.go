// Package archive stores copies of submitted sources.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/competitive-cli/judge/internal/config"
	"github.com/competitive-cli/judge/internal/pkg/hash"
)

// ErrNotFound is returned when source is missing in archive.
var ErrNotFound = errors.New("source not found")

// Entry describes archived source.
type Entry struct {
	// Key contains location of source inside archive.
	Key string
	// Digest contains SHA3-256 digest of source.
	Digest string
	Size   int64
}

// Archive represents content addressed source storage.
type Archive interface {
	// Save stores source and returns its entry.
	//
	// Sources with equal content and name share the same key.
	Save(ctx context.Context, name string, content []byte) (Entry, error)
	// Load returns source by key.
	Load(ctx context.Context, key string) ([]byte, error)
}

// NewArchive creates archive for storage config.
func NewArchive(cfg config.Storage) (Archive, error) {
	switch o := cfg.Options.(type) {
	case config.LocalStorageOptions:
		return NewLocalArchive(o.SourcesDir), nil
	case config.S3StorageOptions:
		return NewS3Archive(o)
	default:
		return nil, fmt.Errorf("storage %T is not supported", o)
	}
}

func makeEntry(name string, content []byte) (Entry, error) {
	digest, size, err := hash.CalculateSHA3(bytes.NewReader(content))
	if err != nil {
		return Entry{}, err
	}
	name = path.Base(filepath.ToSlash(name))
	if name == "." || name == "/" {
		return Entry{}, fmt.Errorf("invalid source name %q", name)
	}
	return Entry{
		Key:    path.Join(digest[:2], digest, name),
		Digest: digest,
		Size:   size,
	}, nil
}

func validateKey(key string) error {
	if key == "" || path.IsAbs(key) || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

type localArchive struct {
	dir string
}

// NewLocalArchive returns archive that stores sources in directory.
func NewLocalArchive(dir string) Archive {
	return &localArchive{dir: dir}
}

func (a *localArchive) Save(ctx context.Context, name string, content []byte) (Entry, error) {
	entry, err := makeEntry(name, content)
	if err != nil {
		return Entry{}, err
	}
	target := filepath.Join(a.dir, filepath.FromSlash(entry.Key))
	if _, err := os.Stat(target); err == nil {
		return entry, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return Entry{}, err
	}
	file, err := os.CreateTemp(filepath.Dir(target), ".source-*")
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = os.Remove(file.Name()) }()
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return Entry{}, err
	}
	if err := file.Close(); err != nil {
		return Entry{}, err
	}
	if err := os.Rename(file.Name(), target); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (a *localArchive) Load(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filepath.Join(a.dir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return content, err
}

type s3Archive struct {
	client     *s3.Client
	bucket     string
	pathPrefix string
}

const defaultRegion = "us-east-1"

// NewS3Archive returns archive that stores sources in S3 bucket.
func NewS3Archive(opts config.S3StorageOptions) (Archive, error) {
	secret, err := opts.SecretAccessKey.Secret()
	if err != nil {
		return nil, err
	}
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}
	options := s3.Options{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, secret, "",
		),
		UsePathStyle: opts.UsePathStyle,
	}
	if opts.Endpoint != "" {
		options.EndpointResolver = s3.EndpointResolverFromURL(opts.Endpoint)
	}
	return &s3Archive{
		client:     s3.New(options),
		bucket:     opts.Bucket,
		pathPrefix: opts.PathPrefix,
	}, nil
}

func (a *s3Archive) Save(ctx context.Context, name string, content []byte) (Entry, error) {
	entry, err := makeEntry(name, content)
	if err != nil {
		return Entry{}, err
	}
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.pathPrefix + entry.Key),
		Body:   bytes.NewReader(content),
	}); err != nil {
		return Entry{}, fmt.Errorf("cannot upload source: %w", err)
	}
	return entry, nil
}

func (a *s3Archive) Load(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	output, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.pathPrefix + key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var responseError interface{ HTTPStatusCode() int }
		if errors.As(err, &noSuchKey) ||
			(errors.As(err, &responseError) && responseError.HTTPStatusCode() == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("cannot download source: %w", err)
	}
	defer func() { _ = output.Body.Close() }()
	return io.ReadAll(output.Body)
}
