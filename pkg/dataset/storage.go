package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Storage reads and writes dataset files by slash separated path relative
// to the dataset root. Local directories and S3 prefixes are supported.
type Storage interface {
	ReadFile(ctx context.Context, rel string) ([]byte, error)
	WriteFile(ctx context.Context, rel string, data []byte) error

	// List returns the relative paths of all files under prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	Exists(ctx context.Context, rel string) (bool, error)

	// Root returns the dataset location as given to NewStorage
	Root() string

	// LocalPath returns the filesystem path of rel for storages backed by
	// a local directory
	LocalPath(rel string) (string, bool)
}

// ErrNotExist is returned, wrapped, for files missing from a storage
var ErrNotExist = fs.ErrNotExist

// LocalStorage keeps a dataset in a local directory
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

func (s *LocalStorage) full(rel string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(rel))
}

func (s *LocalStorage) ReadFile(_ context.Context, rel string) ([]byte, error) {
	return os.ReadFile(s.full(rel))
}

func (s *LocalStorage) WriteFile(_ context.Context, rel string, data []byte) error {
	fullPath := s.full(rel)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0644)
}

func (s *LocalStorage) List(_ context.Context, prefix string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.full(prefix), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(files)
	return files, err
}

func (s *LocalStorage) Exists(_ context.Context, rel string) (bool, error) {
	_, err := os.Stat(s.full(rel))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *LocalStorage) Root() string { return s.basePath }

func (s *LocalStorage) LocalPath(rel string) (string, bool) { return s.full(rel), true }

// S3Storage keeps a dataset under an S3 prefix
type S3Storage struct {
	bucket     string
	prefix     string
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// ParseS3URI splits "s3://bucket/prefix"
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	if !IsS3URI(uri) {
		return "", "", fmt.Errorf("invalid S3 URI %s: must start with s3://", uri)
	}
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid S3 URI %s: missing bucket name", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

func IsS3URI(p string) bool { return strings.HasPrefix(p, "s3://") }

// NewS3Storage connects with the default AWS credential chain. An empty
// region keeps the region of the shared configuration.
func NewS3Storage(ctx context.Context, uri, region string) (*S3Storage, error) {
	bucket, prefix, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Storage{
		bucket: bucket,
		prefix: prefix,
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024
			u.Concurrency = 3
		}),
		downloader: manager.NewDownloader(client),
	}, nil
}

func (s *S3Storage) key(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return path.Join(s.prefix, rel)
}

func (s *S3Storage) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	key := s.key(rel)
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, ErrNotExist)
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, key, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Storage) WriteFile(ctx context.Context, rel string, data []byte) error {
	key := s.key(rel)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") && path.Ext(fullPrefix) == "" {
		fullPrefix += "/"
	}

	var files []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, fullPrefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			files = append(files, key)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *S3Storage) Exists(ctx context.Context, rel string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(rel)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Storage) Root() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3Storage) LocalPath(string) (string, bool) { return "", false }

// NewStorage picks S3 for s3:// locations and the local filesystem
// otherwise
func NewStorage(ctx context.Context, location, s3Region string) (Storage, error) {
	if IsS3URI(location) {
		return NewS3Storage(ctx, location, s3Region)
	}
	return NewLocalStorage(location), nil
}
