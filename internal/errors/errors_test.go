package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func errorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

func TestAppError(t *testing.T) {
	cause := errors.New("underlying error")
	appErr := NewAppError(ErrorTypeConnection, "connection failed", cause)

	if appErr.IsRecoverable() {
		t.Error("Expected non-recoverable error")
	}

	expected := "connection: connection failed (caused by: underlying error)"
	if appErr.Error() != expected {
		t.Errorf("Expected error string %v, got %v", expected, appErr.Error())
	}
	if !errors.Is(appErr, cause) {
		t.Error("Expected Unwrap to expose the cause")
	}
}

func TestAppErrorWithContext(t *testing.T) {
	appErr := NewAppError(ErrorTypeSQL, "statement failed", nil)
	appErr.WithContext("statement_index", 4).WithContext("table", "classes")

	if appErr.Context["statement_index"] != 4 || appErr.Context["table"] != "classes" {
		t.Errorf("unexpected context: %v", appErr.Context)
	}
	if appErr.Error() != "sql: statement failed" {
		t.Errorf("unexpected error string %q", appErr.Error())
	}
}

func TestErrorClassifier_ClassifyMySQLError(t *testing.T) {
	tests := []struct {
		number      uint16
		wantType    ErrorType
		recoverable bool
	}{
		{1045, ErrorTypePermission, false},
		{1142, ErrorTypePermission, false},
		{1049, ErrorTypeValidation, false},
		{1050, ErrorTypeSchema, false},
		{1146, ErrorTypeSchema, false},
		{1054, ErrorTypeSchema, false},
		{1062, ErrorTypeValidation, false},
		{1452, ErrorTypeValidation, false},
		{1064, ErrorTypeSQL, false},
		{1205, ErrorTypeTimeout, true},
		{1213, ErrorTypeSQL, true},
		{2003, ErrorTypeConnection, true},
		{2006, ErrorTypeConnection, true},
		{9999, ErrorTypeSQL, false},
	}

	classifier := NewErrorClassifier()
	for _, tt := range tests {
		t.Run(fmt.Sprintf("mysql_%d", tt.number), func(t *testing.T) {
			err := fmt.Errorf("exec: %w", &mysql.MySQLError{Number: tt.number, Message: "boom"})
			appErr := classifier.ClassifyError(err)

			if appErr.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", appErr.Type, tt.wantType)
			}
			if appErr.IsRecoverable() != tt.recoverable {
				t.Errorf("Recoverable = %v, want %v", appErr.IsRecoverable(), tt.recoverable)
			}
			if appErr.Context["mysql_error_code"] != tt.number {
				t.Errorf("mysql_error_code = %v, want %d", appErr.Context["mysql_error_code"], tt.number)
			}
		})
	}
}

func TestErrorClassifier_ClassifySQLError(t *testing.T) {
	classifier := NewErrorClassifier()

	if got := classifier.ClassifyError(sql.ErrNoRows); got.Type != ErrorTypeValidation {
		t.Errorf("ErrNoRows type = %v", got.Type)
	}
	if got := classifier.ClassifyError(sql.ErrTxDone); got.Type != ErrorTypeSQL {
		t.Errorf("ErrTxDone type = %v", got.Type)
	}
	if got := classifier.ClassifyError(sql.ErrConnDone); !got.IsRecoverable() {
		t.Error("ErrConnDone should be recoverable")
	}
	if got := classifier.ClassifyError(mysql.ErrInvalidConn); got.Type != ErrorTypeConnection {
		t.Errorf("ErrInvalidConn type = %v", got.Type)
	}
}

func TestErrorClassifier_ClassifyContextError(t *testing.T) {
	classifier := NewErrorClassifier()

	timeout := classifier.ClassifyError(context.DeadlineExceeded)
	if timeout.Type != ErrorTypeTimeout || !timeout.IsRecoverable() {
		t.Errorf("unexpected classification %+v", timeout)
	}

	canceled := classifier.ClassifyError(context.Canceled)
	if canceled.Type != ErrorTypeInterruption || canceled.IsRecoverable() {
		t.Errorf("unexpected classification %+v", canceled)
	}
}

func TestErrorClassifier_ClassifyFileSystemError(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		errno syscall.Errno
		want  ErrorType
	}{
		{syscall.ENOENT, ErrorTypeValidation},
		{syscall.EACCES, ErrorTypePermission},
		{syscall.ENOSPC, ErrorTypeValidation},
	}
	for _, tt := range tests {
		err := &os.PathError{Op: "open", Path: "/backups/x.sql", Err: tt.errno}
		if got := classifier.ClassifyError(err); got.Type != tt.want {
			t.Errorf("errno %v: type = %v, want %v", tt.errno, got.Type, tt.want)
		}
	}
}

func TestErrorClassifier_ClassifyNetworkError(t *testing.T) {
	classifier := NewErrorClassifier()

	err := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	got := classifier.ClassifyError(err)
	if got.Type != ErrorTypeConnection || !got.IsRecoverable() {
		t.Errorf("unexpected classification %+v", got)
	}

	unknown := classifier.ClassifyError(errors.New("mystery"))
	if unknown.Type != ErrorTypeUnknown {
		t.Errorf("unexpected classification %+v", unknown)
	}
}

func TestRetryHandler_Retry(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds after recoverable failures", func(t *testing.T) {
		attempts := 0
		err := NewRetryHandler(fast).Retry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return &mysql.MySQLError{Number: 2006, Message: "gone away"}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Retry() error = %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("stops on non-recoverable error", func(t *testing.T) {
		attempts := 0
		err := NewRetryHandler(fast).Retry(context.Background(), func() error {
			attempts++
			return &mysql.MySQLError{Number: 1045, Message: "denied"}
		})
		if errorType(err) != ErrorTypePermission {
			t.Errorf("error type = %v", errorType(err))
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		attempts := 0
		err := NewRetryHandler(fast).Retry(context.Background(), func() error {
			attempts++
			return &mysql.MySQLError{Number: 2003, Message: "refused"}
		})
		var appErr *AppError
		if !errors.As(err, &appErr) || appErr.Context["attempts"] != 3 {
			t.Errorf("unexpected error %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewRetryHandler(fast).Retry(ctx, func() error { return nil })
		if errorType(err) != ErrorTypeInterruption {
			t.Errorf("error type = %v", errorType(err))
		}
	})
}

func TestRetryHandler_CalculateDelay(t *testing.T) {
	rh := NewRetryHandler(RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2})

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := rh.calculateDelay(i + 1); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestGracefulShutdownHandler(t *testing.T) {
	gsh := NewGracefulShutdownHandler()

	var order []int
	gsh.RegisterShutdownFunc(func() error { order = append(order, 1); return nil })
	gsh.RegisterShutdownFunc(func() error { order = append(order, 2); return errors.New("ignored") })

	gsh.Start()
	gsh.Shutdown()
	gsh.Shutdown()
	gsh.WaitForShutdown()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("shutdown order = %v, want [2 1]", order)
	}
}

func TestFormatUserError(t *testing.T) {
	if FormatUserError(nil) != "" {
		t.Error("expected empty message for nil")
	}

	appErr := NewAppError(ErrorTypeSQL, "internal", nil)
	appErr.UserMessage = "Restore failed"
	if FormatUserError(appErr) != "Restore failed" {
		t.Errorf("got %q", FormatUserError(appErr))
	}
	if FormatUserError(errors.New("plain")) != "plain" {
		t.Errorf("got %q", FormatUserError(errors.New("plain")))
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "ignored") != nil {
		t.Error("expected nil for nil error")
	}

	wrapped := WrapError(&mysql.MySQLError{Number: 2003}, "failed to open database connection")
	if wrapped.Type != ErrorTypeConnection || !wrapped.IsRecoverable() {
		t.Errorf("unexpected wrap %+v", wrapped)
	}
	if wrapped.Message != "failed to open database connection" {
		t.Errorf("message = %q", wrapped.Message)
	}

	rewrapped := WrapError(wrapped, "outer")
	if rewrapped.Type != ErrorTypeConnection || !rewrapped.IsRecoverable() {
		t.Errorf("unexpected rewrap %+v", rewrapped)
	}
}
