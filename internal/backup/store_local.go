package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultBackupDir returns <working directory>/backups
func DefaultBackupDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "backups"
	}
	return filepath.Join(wd, "backups")
}

// LocalStore keeps backups as files in one directory. The directory is
// created, parents included, on the first write.
type LocalStore struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalStore creates a store rooted at config.BasePath
func NewLocalStore(config *LocalConfig) (*LocalStore, error) {
	if config == nil {
		return nil, NewConfigurationError("local storage configuration is required", nil)
	}
	if config.BasePath == "" {
		return nil, NewConfigurationError("local storage base_path is required", nil)
	}

	perm := os.FileMode(config.Permissions)
	if perm == 0 {
		perm = 0755
	}

	return &LocalStore{
		basePath:    filepath.Clean(config.BasePath),
		permissions: perm,
	}, nil
}

// BasePath returns the directory holding the backups
func (ls *LocalStore) BasePath() string {
	return ls.basePath
}

func (ls *LocalStore) path(name string) (string, error) {
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	return filepath.Join(ls.basePath, name), nil
}

func (ls *LocalStore) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(ls.basePath)
	if errors.Is(err, fs.ErrNotExist) {
		return []ObjectInfo{}, nil
	}
	if err != nil {
		return nil, NewStorageError("failed to read backup directory", err).WithContext("path", ls.basePath)
	}

	infos := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, NewStorageError("failed to stat backup file", err).WithContext("file", entry.Name())
		}
		infos = append(infos, fileObjectInfo(entry.Name(), info))
	}
	return infos, nil
}

func (ls *LocalStore) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	p, err := ls.path(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, NewStorageError("failed to stat backup file", err).WithContext("file", name)
	}
	if info.IsDir() {
		return nil, ErrObjectNotFound
	}

	obj := fileObjectInfo(name, info)
	return &obj, nil
}

func (ls *LocalStore) Read(ctx context.Context, name string) ([]byte, error) {
	p, err := ls.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, NewStorageError("failed to read backup file", err).WithContext("file", name)
	}
	return data, nil
}

func (ls *LocalStore) Write(ctx context.Context, name string, data []byte) error {
	p, err := ls.path(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(ls.basePath, ls.permissions); err != nil {
		return NewStorageError("failed to create backup directory", err).WithContext("path", ls.basePath)
	}

	file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return ErrObjectExists
	}
	if err != nil {
		return NewStorageError("failed to create backup file", err).WithContext("file", name)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(p)
		return NewStorageError("failed to write backup file", err).WithContext("file", name)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(p)
		return NewStorageError("failed to sync backup file", err).WithContext("file", name)
	}
	if err := file.Close(); err != nil {
		os.Remove(p)
		return NewStorageError("failed to close backup file", err).WithContext("file", name)
	}
	return nil
}

func (ls *LocalStore) Delete(ctx context.Context, name string) error {
	p, err := ls.path(name)
	if err != nil {
		return err
	}

	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to delete backup file %s", name), err)
	}
	return nil
}

// fileObjectInfo uses the modification time as creation time; backups are
// never modified after they are written.
func fileObjectInfo(name string, info fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Name:      name,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}
}
