package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore keeps backups as objects in a Google Cloud Storage bucket
type GCSStore struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewGCSStore creates a GCS store. Without a credentials file the default
// application credentials are used.
func NewGCSStore(ctx context.Context, config *GCSConfig) (*GCSStore, error) {
	if config == nil || config.Bucket == "" {
		return nil, NewConfigurationError("gcs storage requires bucket", nil)
	}

	var client *storage.Client
	var err error

	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}

	return &GCSStore{
		client:     client,
		bucketName: config.Bucket,
		prefix:     normalizePrefix(config.Prefix),
	}, nil
}

// Close releases the underlying client
func (gs *GCSStore) Close() error {
	return gs.client.Close()
}

func (gs *GCSStore) object(name string) (*storage.ObjectHandle, error) {
	if err := ValidateFilename(name); err != nil {
		return nil, err
	}
	return gs.client.Bucket(gs.bucketName).Object(gs.prefix + name), nil
}

func (gs *GCSStore) List(ctx context.Context) ([]ObjectInfo, error) {
	it := gs.client.Bucket(gs.bucketName).Objects(ctx, &storage.Query{Prefix: gs.prefix})

	var infos []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewStorageError("failed to list backups from GCS", err)
		}

		name := strings.TrimPrefix(attrs.Name, gs.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		infos = append(infos, ObjectInfo{Name: name, Size: attrs.Size, CreatedAt: attrs.Created})
	}
	return infos, nil
}

func (gs *GCSStore) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	obj, err := gs.object(name)
	if err != nil {
		return nil, err
	}

	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to get attributes of %s", name), err)
	}
	return &ObjectInfo{Name: name, Size: attrs.Size, CreatedAt: attrs.Created}, nil
}

func (gs *GCSStore) Read(ctx context.Context, name string) ([]byte, error) {
	obj, err := gs.object(name)
	if err != nil {
		return nil, err
	}

	reader, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to download backup %s from GCS", name), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewStorageError("failed to read backup data", err)
	}
	return data, nil
}

func (gs *GCSStore) Write(ctx context.Context, name string, data []byte) error {
	obj, err := gs.object(name)
	if err != nil {
		return err
	}

	writer := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/sql"
	writer.Metadata = map[string]string{"backup-name": name}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return NewStorageError("failed to write backup to GCS", err)
	}
	if err := writer.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return ErrObjectExists
		}
		return NewStorageError("failed to finalize GCS upload", err)
	}
	return nil
}

func (gs *GCSStore) Delete(ctx context.Context, name string) error {
	obj, err := gs.object(name)
	if err != nil {
		return err
	}

	err = obj.Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to delete backup %s", name), err)
	}
	return nil
}
