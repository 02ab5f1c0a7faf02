// Package storage opens query and result files from the local filesystem or S3.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotExist is returned (wrapped) when a named object does not exist
var ErrNotExist = os.ErrNotExist

// File is a random access view of a stored object
type File interface {
	io.ReaderAt
	io.Closer

	// Size returns the object size in bytes
	Size() int64
}

// Storage is an interface for reading inputs and writing reports
// Supports both local filesystem and S3
type Storage interface {
	// Open returns a forward-only stream over the named object
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// OpenFile returns a random access view of the named object
	OpenFile(ctx context.Context, name string) (File, error)

	// Exists checks if the named object exists
	Exists(ctx context.Context, name string) (bool, error)

	// ReadFile reads the whole named object into memory
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// WriteFile writes data to the named object
	WriteFile(ctx context.Context, name string, data []byte) error
}

// LocalStorage implements Storage for local filesystem
type LocalStorage struct{}

// NewLocalStorage creates a new local storage backend
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

func (s *LocalStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}

func (s *LocalStorage) OpenFile(_ context.Context, name string) (File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", name)
	}
	return &localFile{File: f, size: info.Size()}, nil
}

func (s *LocalStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(name)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *LocalStorage) ReadFile(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (s *LocalStorage) WriteFile(_ context.Context, name string, data []byte) error {
	// Ensure directory exists
	if dir := filepath.Dir(name); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(name, data, 0644)
}

type localFile struct {
	*os.File
	size int64
}

func (f *localFile) Size() int64 {
	return f.size
}

// S3Storage implements Storage for AWS S3. Names are s3://bucket/key URIs.
type S3Storage struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// NewS3Storage creates a new S3 storage backend from the default AWS config chain
func NewS3Storage(ctx context.Context) (*S3Storage, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &S3Storage{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
	}, nil
}

func (s *S3Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	uri, err := ParseS3URI(name)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
	})
	if err != nil {
		return nil, s3Error(err, name)
	}
	return out.Body, nil
}

func (s *S3Storage) OpenFile(ctx context.Context, name string) (File, error) {
	uri, err := ParseS3URI(name)
	if err != nil {
		return nil, err
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
	})
	if err != nil {
		return nil, s3Error(err, name)
	}

	return &s3File{
		ctx:    ctx,
		client: s.client,
		uri:    uri,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

func (s *S3Storage) Exists(ctx context.Context, name string) (bool, error) {
	uri, err := ParseS3URI(name)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
	})
	if err != nil {
		if errors.Is(s3Error(err, name), ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Storage) WriteFile(ctx context.Context, name string, data []byte) error {
	uri, err := ParseS3URI(name)
	if err != nil {
		return err
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to %s: %w", name, err)
	}
	return nil
}

// ReadFile downloads a whole object with concurrent ranged requests
func (s *S3Storage) ReadFile(ctx context.Context, name string) ([]byte, error) {
	uri, err := ParseS3URI(name)
	if err != nil {
		return nil, err
	}

	buf := manager.NewWriteAtBuffer([]byte{})
	_, err = s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
	})
	if err != nil {
		return nil, s3Error(err, name)
	}
	return buf.Bytes(), nil
}

// s3File serves ReadAt with ranged GetObject requests
type s3File struct {
	ctx    context.Context
	client *s3.Client
	uri    *S3URI
	size   int64
}

func (f *s3File) ReadAt(p []byte, off int64) (int, error) {
	if off >= f.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= f.size {
		end = f.size - 1
	}

	out, err := f.client.GetObject(f.ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.uri.Bucket),
		Key:    aws.String(f.uri.Key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read %s at %d: %w", f.uri, off, err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *s3File) Size() int64 {
	return f.size
}

func (f *s3File) Close() error {
	return nil
}

// S3URI represents a parsed S3 URI
type S3URI struct {
	Bucket string
	Key    string
}

func (u *S3URI) String() string {
	return "s3://" + u.Bucket + "/" + u.Key
}

// ParseS3URI parses an S3 URI like s3://bucket/path/to/object
func ParseS3URI(uri string) (*S3URI, error) {
	if !IsS3URI(uri) {
		return nil, fmt.Errorf("invalid S3 URI: %s (must start with s3://)", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "s3://"), "/", 2)
	if parts[0] == "" {
		return nil, fmt.Errorf("invalid S3 URI: %s (missing bucket name)", uri)
	}
	if len(parts) < 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid S3 URI: %s (missing object key)", uri)
	}

	return &S3URI{Bucket: parts[0], Key: parts[1]}, nil
}

// IsS3URI checks if a path is an S3 URI
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// NewStorage creates the appropriate storage backend based on path
func NewStorage(ctx context.Context, path string) (Storage, error) {
	if IsS3URI(path) {
		return NewS3Storage(ctx)
	}
	return NewLocalStorage(), nil
}

// s3Error maps missing objects onto ErrNotExist
func s3Error(err error, name string) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	return fmt.Errorf("failed to access %s: %w", name, err)
}
