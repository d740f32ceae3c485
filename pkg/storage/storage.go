package storage

import (
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"
)

// ErrObjectExists is returned by Put when the path is already occupied.
// A path collision is a failure, not a silent replace.
var ErrObjectExists = errors.New("object already exists")

type Store interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, path string) error
}

type minioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, bucket string) Store {
	return &minioStore{client: client, bucket: bucket}
}

func (s *minioStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err == nil {
		return ErrObjectExists
	}
	if resp := minio.ToErrorResponse(err); resp.Code != "NoSuchKey" {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *minioStore) Get(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	// GetObject is lazy; Stat surfaces a missing key before any read.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, 0, err
	}
	return obj, info.Size, nil
}

func (s *minioStore) Remove(ctx context.Context, path string) error {
	return s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{})
}
