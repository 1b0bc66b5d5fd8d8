package errors

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name:        "error without cause",
			appError:    NewAppValidationError("timestamp column missing"),
			wantMessage: "[VALIDATION] timestamp column missing",
		},
		{
			name:        "error with cause",
			appError:    NewStorageError("open input", os.ErrNotExist),
			wantMessage: "[STORAGE] open input: file does not exist",
		},
		{
			name:        "export error",
			appError:    NewExportError("write workbook", fmt.Errorf("disk full")),
			wantMessage: "[EXPORT] write workbook: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := os.ErrPermission
	err := NewStorageError("create output directory", cause)

	assert.True(t, errors.Is(err, os.ErrPermission))

	wrapped := fmt.Errorf("clean stage: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestNewMissingColumnError(t *testing.T) {
	err := NewMissingColumnError("timestamp", "input.csv")

	assert.Equal(t, ErrTypeValidation, err.Type)
	assert.Equal(t, "timestamp", err.Context["column"])
	assert.Equal(t, "input.csv", err.Context["source"])
	assert.Contains(t, err.Error(), `"timestamp"`)
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"matching type", NewConfigError("bad weights", nil), ErrTypeConfig, true},
		{"wrapped matching type", fmt.Errorf("load: %w", NewParsingError("csv", nil)), ErrTypeParsing, true},
		{"different type", NewNotFoundError("input file"), ErrTypeStorage, false},
		{"plain error", errors.New("boom"), ErrTypeStorage, false},
		{"nil error", nil, ErrTypeStorage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeExport, Message: "sheet"}
	err.WithContext("sheet", "Daily").WithContext("rows", 12)

	assert.Equal(t, "Daily", err.Context["sheet"])
	assert.Equal(t, 12, err.Context["rows"])
}
