package backup

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ExportOptions configures ExportBackup
type ExportOptions struct {
	Compression CompressionType `json:"compression"`
	// Passphrase enables AES-256-GCM encryption when set.
	Passphrase string `json:"-"`
}

// ExportResult describes an exported dump
type ExportResult struct {
	Filename         string          `json:"filename"`
	ExportName       string          `json:"exportName"`
	OriginalSize     int64           `json:"originalSize"`
	ExportedSize     int64           `json:"exportedSize"`
	CompressionRatio float64         `json:"compressionRatio"`
	Compression      CompressionType `json:"compression"`
	Encrypted        bool            `json:"encrypted"`
	Algorithm        string          `json:"algorithm,omitempty"`
	// Checksum is the xxhash64 of the exported bytes, in hex.
	Checksum string        `json:"checksum"`
	Duration time.Duration `json:"duration"`
}

// Exporter packages a dump for transfer out of the store
type Exporter struct {
	catalog *Catalog
	now     Clock
}

// NewExporter creates an exporter
func NewExporter(catalog *Catalog, clock Clock) *Exporter {
	if clock == nil {
		clock = time.Now
	}
	return &Exporter{catalog: catalog, now: clock}
}

// Export compresses and optionally encrypts filename and writes it to w
func (e *Exporter) Export(ctx context.Context, filename string, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	start := e.now()

	compressor, err := GetCompressor(opts.Compression)
	if err != nil {
		return nil, err
	}

	data, err := e.catalog.Read(ctx, filename)
	if err != nil {
		return nil, err
	}

	out, err := compressor.Compress(data)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{
		Filename:     filename,
		ExportName:   filename + compressor.Extension(),
		OriginalSize: int64(len(data)),
		Compression:  opts.Compression,
	}
	if result.Compression == "" {
		result.Compression = CompressionTypeNone
	}

	if opts.Passphrase != "" {
		out, err = Encrypt(out, opts.Passphrase)
		if err != nil {
			return nil, err
		}
		result.Encrypted = true
		result.Algorithm = encryptionAlgorithm
		result.ExportName += encryptionExtension
	}

	hasher := xxhash.New()
	n, err := io.MultiWriter(w, hasher).Write(out)
	if err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to write export of %s", filename), err)
	}

	result.ExportedSize = int64(n)
	result.CompressionRatio = CalculateCompressionRatio(result.OriginalSize, result.ExportedSize)
	result.Checksum = fmt.Sprintf("%016x", hasher.Sum64())
	result.Duration = e.now().Sub(start)
	return result, nil
}

// Import reverses Export, returning the plain SQL script
func Import(data []byte, opts ExportOptions) ([]byte, error) {
	compressor, err := GetCompressor(opts.Compression)
	if err != nil {
		return nil, err
	}

	if opts.Passphrase != "" {
		data, err = Decrypt(data, opts.Passphrase)
		if err != nil {
			return nil, err
		}
	}
	return compressor.Decompress(data)
}

// Import unpacks an export and stores the script as filename. The script must
// pass ValidateScript.
func (e *Exporter) Import(ctx context.Context, filename string, data []byte, opts ExportOptions) (*BackupFile, error) {
	script, err := Import(data, opts)
	if err != nil {
		return nil, err
	}
	if result := ValidateScript(string(script)); !result.Valid {
		return nil, NewValidationError(fmt.Sprintf("%s is not a valid backup: %s", filename, strings.Join(result.Errors, "; ")), nil)
	}
	return e.catalog.Add(ctx, filename, script)
}

// ParseExportName splits an export name such as "a.sql.zst.enc" into the dump
// name, its compression and whether it is encrypted
func ParseExportName(name string) (string, CompressionType, bool) {
	encrypted := strings.HasSuffix(name, encryptionExtension)
	name = strings.TrimSuffix(name, encryptionExtension)

	for _, ct := range SupportedCompression() {
		compressor, err := GetCompressor(CompressionType(ct))
		if err != nil {
			continue
		}
		if ext := compressor.Extension(); ext != "" && strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext), CompressionType(ct), encrypted
		}
	}
	return name, CompressionTypeNone, encrypted
}

// Checksum returns the hex xxhash64 of data
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
