package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const defaultRemotePrefix = "backups/"

// S3Store keeps backups as objects under a prefix of an S3 bucket
type S3Store struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Store creates an S3 store. Empty credentials fall back to the default
// AWS credential chain.
func NewS3Store(config *S3Config) (*S3Store, error) {
	if config == nil || config.Bucket == "" || config.Region == "" {
		return nil, NewConfigurationError("s3 storage requires bucket and region", nil)
	}

	awsConfig := &aws.Config{Region: aws.String(config.Region)}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}

	return NewS3StoreWithClient(s3.New(sess), config.Bucket, config.Prefix), nil
}

// NewS3StoreWithClient wraps an existing client
func NewS3StoreWithClient(client s3iface.S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(prefix),
	}
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return defaultRemotePrefix
	}
	prefix = strings.TrimLeft(prefix, "/")
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

func (s *S3Store) key(name string) (string, error) {
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	return s.prefix + name, nil
}

func (s *S3Store) List(ctx context.Context) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}

	var infos []ObjectInfo
	err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), s.prefix)
			// Objects in nested "directories" are not backups.
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			infos = append(infos, ObjectInfo{
				Name:      name,
				Size:      aws.Int64Value(obj.Size),
				CreatedAt: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, NewStorageError("failed to list S3 objects", err).WithContext("bucket", s.bucket)
	}
	return infos, nil
}

func (s *S3Store) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}

	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, NewStorageError("failed to stat S3 object", err).WithContext("key", key)
	}

	return &ObjectInfo{
		Name:      name,
		Size:      aws.Int64Value(out.ContentLength),
		CreatedAt: aws.TimeValue(out.LastModified),
	}, nil
}

func (s *S3Store) Read(ctx context.Context, name string) ([]byte, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, NewStorageError("failed to get S3 object", err).WithContext("key", key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, NewStorageError("failed to read S3 object body", err).WithContext("key", key)
	}
	return data, nil
}

func (s *S3Store) Write(ctx context.Context, name string, data []byte) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}

	if _, err := s.Stat(ctx, name); err == nil {
		return ErrObjectExists
	} else if !errors.Is(err, ErrObjectNotFound) {
		return err
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/sql"),
		Metadata: map[string]*string{
			"backup-name": aws.String(path.Base(key)),
		},
	})
	if err != nil {
		return NewStorageError("failed to upload backup to S3", err).WithContext("key", key)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	if _, err := s.Stat(ctx, name); err != nil {
		return err
	}

	key, _ := s.key(name)
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return NewStorageError("failed to delete S3 object", err).WithContext("key", key)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
