package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureStore keeps backups as block blobs in one container
type AzureStore struct {
	containerURL azblob.ContainerURL
	prefix       string
}

// NewAzureStore creates an Azure Blob store using shared key credentials
func NewAzureStore(config *AzureConfig) (*AzureStore, error) {
	if config == nil || config.AccountName == "" || config.AccountKey == "" || config.ContainerName == "" {
		return nil, NewConfigurationError("azure storage requires account_name, account_key and container_name", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureStore{
		containerURL: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.ContainerName),
		prefix:       normalizePrefix(config.Prefix),
	}, nil
}

func (as *AzureStore) blobURL(name string) (azblob.BlockBlobURL, error) {
	if err := ValidateFilename(name); err != nil {
		return azblob.BlockBlobURL{}, err
	}
	return as.containerURL.NewBlockBlobURL(as.prefix + name), nil
}

func (as *AzureStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var infos []ObjectInfo

	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := as.containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: as.prefix,
		})
		if err != nil {
			return nil, NewStorageError("failed to list backup blobs", err)
		}

		for _, item := range resp.Segment.BlobItems {
			name := strings.TrimPrefix(item.Name, as.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			info := ObjectInfo{Name: name, CreatedAt: item.Properties.LastModified}
			if item.Properties.CreationTime != nil {
				info.CreatedAt = *item.Properties.CreationTime
			}
			if item.Properties.ContentLength != nil {
				info.Size = *item.Properties.ContentLength
			}
			infos = append(infos, info)
		}

		marker = resp.NextMarker
	}

	return infos, nil
}

func (as *AzureStore) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	blobURL, err := as.blobURL(name)
	if err != nil {
		return nil, err
	}

	props, err := blobURL.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, NewStorageError(fmt.Sprintf("failed to get properties of blob %s", name), err)
	}

	return &ObjectInfo{
		Name:      name,
		Size:      props.ContentLength(),
		CreatedAt: props.CreationTime(),
	}, nil
}

func (as *AzureStore) Read(ctx context.Context, name string) ([]byte, error) {
	blobURL, err := as.blobURL(name)
	if err != nil {
		return nil, err
	}

	resp, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, NewStorageError(fmt.Sprintf("failed to download backup %s from Azure", name), err)
	}

	body := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, NewStorageError("failed to read backup data", err)
	}
	return data, nil
}

func (as *AzureStore) Write(ctx context.Context, name string, data []byte) error {
	blobURL, err := as.blobURL(name)
	if err != nil {
		return err
	}

	_, err = azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/sql",
		},
		Metadata: azblob.Metadata{
			"backup_name": name,
		},
		// Fails with 409 when the blob already exists.
		AccessConditions: azblob.BlobAccessConditions{
			ModifiedAccessConditions: azblob.ModifiedAccessConditions{IfNoneMatch: azblob.ETagAny},
		},
	})
	if err != nil {
		if azureStatus(err) == http.StatusConflict || azureStatus(err) == http.StatusPreconditionFailed {
			return ErrObjectExists
		}
		return NewStorageError("failed to upload backup to Azure", err)
	}
	return nil
}

func (as *AzureStore) Delete(ctx context.Context, name string) error {
	blobURL, err := as.blobURL(name)
	if err != nil {
		return err
	}

	_, err = blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		if isAzureNotFound(err) {
			return ErrObjectNotFound
		}
		return NewStorageError(fmt.Sprintf("failed to delete blob %s", name), err)
	}
	return nil
}

func azureStatus(err error) int {
	var stgErr azblob.StorageError
	if errors.As(err, &stgErr) && stgErr.Response() != nil {
		return stgErr.Response().StatusCode
	}
	return 0
}

func isAzureNotFound(err error) bool {
	var stgErr azblob.StorageError
	if errors.As(err, &stgErr) {
		if stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return true
		}
	}
	return azureStatus(err) == http.StatusNotFound
}
