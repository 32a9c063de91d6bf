package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Catalog lists, inspects and deletes the dumps held by a store
type Catalog struct {
	store BackupStore
}

// NewCatalog creates a catalog over store
func NewCatalog(store BackupStore) *Catalog {
	return &Catalog{store: store}
}

// List returns the .sql files of the store, newest first
func (c *Catalog) List(ctx context.Context) ([]*BackupFile, error) {
	objects, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]*BackupFile, 0, len(objects))
	for _, obj := range objects {
		if !isSQLFile(obj.Name) {
			continue
		}
		files = append(files, newBackupFile(obj))
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].Filename > files[j].Filename
		}
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// Stat returns a single entry or a NOT_FOUND_ERROR
func (c *Catalog) Stat(ctx context.Context, filename string) (*BackupFile, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	obj, err := c.store.Stat(ctx, filename)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, NewNotFoundError(filename)
	}
	if err != nil {
		return nil, err
	}
	return newBackupFile(*obj), nil
}

// Add stores a new dump. An existing file is a CONFLICT_ERROR.
func (c *Catalog) Add(ctx context.Context, filename string, data []byte) (*BackupFile, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}
	if !isSQLFile(filename) {
		return nil, NewValidationError(fmt.Sprintf("backup filename must end in %s: %q", sqlExtension, filename), nil)
	}

	if err := c.store.Write(ctx, filename, data); err != nil {
		if errors.Is(err, ErrObjectExists) {
			return nil, NewConflictError(fmt.Sprintf("backup file already exists: %s", filename), err)
		}
		return nil, err
	}
	return c.Stat(ctx, filename)
}

// Read returns the contents of a dump or a NOT_FOUND_ERROR
func (c *Catalog) Read(ctx context.Context, filename string) ([]byte, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	data, err := c.store.Read(ctx, filename)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, NewNotFoundError(filename)
	}
	return data, err
}

// Delete removes a dump. Deleting a missing file is a NOT_FOUND_ERROR.
func (c *Catalog) Delete(ctx context.Context, filename string) error {
	if err := ValidateFilename(filename); err != nil {
		return err
	}

	err := c.store.Delete(ctx, filename)
	if errors.Is(err, ErrObjectNotFound) {
		return NewNotFoundError(filename)
	}
	return err
}

// Stats summarizes the catalog
func (c *Catalog) Stats(ctx context.Context) (*BackupStats, error) {
	files, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &BackupStats{TotalBackups: len(files)}
	for _, f := range files {
		stats.TotalSize += f.Size
	}
	stats.TotalSizeFormatted = FormatFileSize(stats.TotalSize)

	if len(files) > 0 {
		stats.LatestBackup = files[0]
		stats.OldestBackup = files[len(files)-1]
	}
	return stats, nil
}

func newBackupFile(obj ObjectInfo) *BackupFile {
	return &BackupFile{
		Filename:      obj.Name,
		Size:          obj.Size,
		SizeFormatted: FormatFileSize(obj.Size),
		CreatedAt:     obj.CreatedAt,
	}
}
