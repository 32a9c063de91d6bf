package backup

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by a BackupStore when the named object does not exist
var ErrObjectNotFound = errors.New("object not found")

// ErrObjectExists is returned by BackupStore.Write when the name is already taken
var ErrObjectExists = errors.New("object already exists")

// ObjectInfo describes one stored object
type ObjectInfo struct {
	Name      string
	Size      int64
	CreatedAt time.Time
}

// BackupStore is the only way the catalog, dump writer, restore executor and
// validator touch persistent storage. Names are plain file names without any
// directory component.
type BackupStore interface {
	// List returns every object in the store, in no particular order.
	List(ctx context.Context) ([]ObjectInfo, error)
	Stat(ctx context.Context, name string) (*ObjectInfo, error)
	Read(ctx context.Context, name string) ([]byte, error)
	// Write creates a new object. Existing objects are never overwritten.
	Write(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// StorageProviderType represents different storage providers
type StorageProviderType string

const (
	StorageProviderLocal  StorageProviderType = "local"
	StorageProviderMemory StorageProviderType = "memory"
	StorageProviderS3     StorageProviderType = "s3"
	StorageProviderAzure  StorageProviderType = "azure"
	StorageProviderGCS    StorageProviderType = "gcs"
)

// StorageConfig selects and configures the backup store
type StorageConfig struct {
	Provider StorageProviderType `mapstructure:"provider" yaml:"provider"`
	Local    *LocalConfig        `mapstructure:"local" yaml:"local,omitempty"`
	S3       *S3Config           `mapstructure:"s3" yaml:"s3,omitempty"`
	Azure    *AzureConfig        `mapstructure:"azure" yaml:"azure,omitempty"`
	GCS      *GCSConfig          `mapstructure:"gcs" yaml:"gcs,omitempty"`
}

// LocalConfig configures the local directory store
type LocalConfig struct {
	BasePath    string `mapstructure:"base_path" yaml:"base_path"`
	Permissions uint32 `mapstructure:"permissions" yaml:"permissions"`
}

// S3Config configures the S3 store
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// AzureConfig configures the Azure Blob store
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Prefix        string `mapstructure:"prefix" yaml:"prefix"`
}

// GCSConfig configures the Google Cloud Storage store
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
}

// Validate checks that the selected provider has the settings it needs
func (sc *StorageConfig) Validate() error {
	switch sc.Provider {
	case StorageProviderLocal, "":
		if sc.Local != nil && sc.Local.BasePath == "" {
			return NewConfigurationError("local storage base_path is required", nil)
		}
	case StorageProviderMemory:
	case StorageProviderS3:
		if sc.S3 == nil || sc.S3.Bucket == "" || sc.S3.Region == "" {
			return NewConfigurationError("s3 storage requires bucket and region", nil)
		}
	case StorageProviderAzure:
		if sc.Azure == nil || sc.Azure.AccountName == "" || sc.Azure.AccountKey == "" || sc.Azure.ContainerName == "" {
			return NewConfigurationError("azure storage requires account_name, account_key and container_name", nil)
		}
	case StorageProviderGCS:
		if sc.GCS == nil || sc.GCS.Bucket == "" {
			return NewConfigurationError("gcs storage requires bucket", nil)
		}
	default:
		return NewConfigurationError("unsupported storage provider: "+string(sc.Provider), nil)
	}
	return nil
}

// NewStore builds the BackupStore selected by config
func NewStore(ctx context.Context, config StorageConfig) (BackupStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Provider {
	case StorageProviderLocal, "":
		local := config.Local
		if local == nil {
			local = &LocalConfig{BasePath: DefaultBackupDir()}
		}
		return NewLocalStore(local)
	case StorageProviderMemory:
		return NewMemoryStore(nil), nil
	case StorageProviderS3:
		return NewS3Store(config.S3)
	case StorageProviderAzure:
		return NewAzureStore(config.Azure)
	case StorageProviderGCS:
		return NewGCSStore(ctx, config.GCS)
	}
	return nil, NewConfigurationError("unsupported storage provider: "+string(config.Provider), nil)
}
