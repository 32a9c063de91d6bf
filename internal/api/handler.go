// Package api exposes the backup service over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"mysql-backup-restore/internal/backup"
	"mysql-backup-restore/internal/logging"
)

// BackupService is the subset of backup.Service served over HTTP
type BackupService interface {
	CreateBackup(ctx context.Context, opts backup.CreateOptions) (*backup.BackupFile, error)
	RestoreBackup(ctx context.Context, opts backup.RestoreOptions) (*backup.RestoreResult, error)
	GetBackupList(ctx context.Context) ([]*backup.BackupFile, error)
	DeleteBackup(ctx context.Context, filename string) error
	GetBackupStats(ctx context.Context) (*backup.BackupStats, error)
	CleanupOldBackups(ctx context.Context, retentionDays int) (*backup.CleanupResult, error)
	ValidateBackup(ctx context.Context, filename string) (*backup.ValidationResult, error)
	ExportBackup(ctx context.Context, filename string, w io.Writer, opts backup.ExportOptions) (*backup.ExportResult, error)
	OpenBackup(ctx context.Context, filename string) ([]byte, *backup.BackupFile, error)
	AutoBackupSettings() backup.AutoBackupSettings
	Config() backup.BackupSystemConfig
}

// BackupListItem is one entry of GET /backups
type BackupListItem struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"sizeFormatted"`
	CreatedAt     time.Time `json:"createdAt"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
}

// CreateBackupRequest is the body of POST /backups
type CreateBackupRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	IncludeData   *bool    `json:"includeData"`
	IncludeTables []string `json:"includeTables"`
	ExcludeTables []string `json:"excludeTables"`
}

// RestoreBackupRequest is the body of POST /backups/{filename}/restore
type RestoreBackupRequest struct {
	DropExisting *bool `json:"dropExisting"`
	IgnoreErrors bool  `json:"ignoreErrors"`
}

// CleanupRequest is the body of POST /backups/cleanup
type CleanupRequest struct {
	RetentionDays int `json:"retentionDays"`
}

// ConfigResponse is returned by GET /backups/config
type ConfigResponse struct {
	StorageProvider string                    `json:"storageProvider"`
	RetentionDays   int                       `json:"retentionDays"`
	Compression     backup.CompressionType    `json:"compression"`
	OnTableError    backup.ErrorPolicy        `json:"onTableError"`
	AutoBackup      backup.AutoBackupSettings `json:"autoBackup"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Handler bundles the HTTP endpoints for backup management
type Handler struct {
	service BackupService
	logger  *logging.Logger
}

// New constructs a Handler
func New(service BackupService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handler{service: service, logger: logger}
}

// Router wires the handler into a chi router under /backups
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestID)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Route("/backups", func(r chi.Router) {
		r.Get("/", h.listBackups)
		r.Post("/", h.createBackup)
		r.Get("/stats", h.getStats)
		r.Get("/config", h.getConfig)
		r.Post("/cleanup", h.cleanup)
		r.Delete("/{filename}", h.deleteBackup)
		r.Get("/{filename}/validate", h.validateBackup)
		r.Post("/{filename}/restore", h.restoreBackup)
		r.Get("/{filename}/download", h.downloadBackup)
	})
	return r
}

func (h *Handler) listBackups(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.GetBackupList(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]BackupListItem, 0, len(files))
	for _, f := range files {
		items = append(items, BackupListItem{
			ID:            f.ID(),
			Filename:      f.Filename,
			Size:          f.Size,
			SizeFormatted: f.SizeFormatted,
			CreatedAt:     f.CreatedAt,
			Type:          "manual",
			Status:        "completed",
		})
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: items})
}

func (h *Handler) createBackup(w http.ResponseWriter, r *http.Request) {
	var req CreateBackupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	file, err := h.service.CreateBackup(r.Context(), backup.CreateOptions{
		Name:          req.Name,
		Description:   req.Description,
		IncludeData:   req.IncludeData,
		IncludeTables: req.IncludeTables,
		ExcludeTables: req.ExcludeTables,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: file, Message: "backup created"})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetBackupStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: stats})
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	config := h.service.Config()
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: ConfigResponse{
		StorageProvider: string(config.Storage.Provider),
		RetentionDays:   config.Retention.Days,
		Compression:     config.Export.Compression,
		OnTableError:    config.OnTableError,
		AutoBackup:      h.service.AutoBackupSettings(),
	}})
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.CleanupOldBackups(r.Context(), req.RetentionDays)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    result,
		Message: fmt.Sprintf("deleted %d backups, freed %s", result.DeletedCount, result.FreedFormatted),
	})
}

func (h *Handler) deleteBackup(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := h.service.DeleteBackup(r.Context(), filename); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "backup deleted: " + filename})
}

func (h *Handler) validateBackup(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ValidateBackup(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: result})
}

func (h *Handler) restoreBackup(w http.ResponseWriter, r *http.Request) {
	var req RestoreBackupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.RestoreBackup(r.Context(), backup.RestoreOptions{
		Filename:     chi.URLParam(r, "filename"),
		DropExisting: req.DropExisting,
		IgnoreErrors: req.IgnoreErrors,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: result, Message: result.Message})
}

// downloadBackup streams the raw dump, or an export when ?compression= is set
func (h *Handler) downloadBackup(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	compression := r.URL.Query().Get("compression")

	if compression == "" {
		data, _, err := h.service.OpenBackup(r.Context(), filename)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeAttachment(w, filename, "application/sql", data)
		return
	}

	if _, err := backup.GetCompressor(backup.CompressionType(compression)); err != nil {
		h.writeError(w, r, backup.NewValidationError(fmt.Sprintf("unsupported compression %q, use one of %s",
			compression, strings.Join(backup.SupportedCompression(), ", ")), err))
		return
	}

	var buf bytes.Buffer
	result, err := h.service.ExportBackup(r.Context(), filename, &buf, backup.ExportOptions{
		Compression: backup.CompressionType(compression),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Checksum-XXH64", result.Checksum)
	writeAttachment(w, result.ExportName, "application/octet-stream", buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, envelope{Error: &errorBody{
		Type:    string(backup.BackupErrorTypeValidation),
		Message: "invalid JSON body: " + err.Error(),
	}})
	return false
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := &errorBody{Type: "INTERNAL_ERROR", Message: err.Error()}

	var backupErr *backup.BackupError
	if errors.As(err, &backupErr) {
		body.Type = string(backupErr.Type)
		body.Message = backupErr.Message
	} else if errors.Is(err, backup.ErrObjectNotFound) {
		body.Type = string(backup.BackupErrorTypeNotFound)
	}

	entry := h.logger.WithContext(r.Context()).WithField("path", r.URL.Path).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.WithField("error", err.Error()).Error("Request failed")
	} else {
		entry.WithField("error", err.Error()).Debug("Request rejected")
	}

	writeJSON(w, status, envelope{Error: body})
}

func statusFor(err error) int {
	switch {
	case backup.IsNotFound(err):
		return http.StatusNotFound
	case backup.IsType(err, backup.BackupErrorTypeValidation):
		return http.StatusBadRequest
	case backup.IsType(err, backup.BackupErrorTypeConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.CreateContextWithRequestID(r.Context(), id)))
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	})
}
