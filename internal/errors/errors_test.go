package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	// Verify all expected error codes exist
	codes := []string{
		ErrConfig,
		ErrConn,
		ErrAuth,
		ErrExec,
		ErrTimeout,
		ErrPort,
		ErrTunnel,
	}

	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
	}

	// Verify codes are unique
	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Server 'gpu-01' not found in servers.yaml",
			suggestion: "Add the server with: fleetdash servers add",
		},
		{
			name:       "connection error",
			code:       ErrConn,
			message:    "Can't reach 'gpu-01' at 10.0.0.5:22",
			suggestion: "Check the host is online: ping 10.0.0.5",
		},
		{
			name:       "auth error",
			code:       ErrAuth,
			message:    "Server 'gpu-01' rejected the credentials",
			suggestion: "Verify the password or key file in servers.yaml",
		},
		{
			name:       "port error",
			code:       ErrPort,
			message:    "No free local port between 16006 and 20000",
			suggestion: "Stop unused forwards: fleetdash forward list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
		notExpected   []string
	}{
		{
			name: "basic error formatting",
			err:  New(ErrConfig, "Invalid server descriptor", "Check servers.yaml syntax"),
			expectedParts: []string{
				"Invalid server descriptor",
				"Check servers.yaml syntax",
			},
		},
		{
			name: "error with failure symbol",
			err:  New(ErrConn, "Connection failed", "Try again"),
			expectedParts: []string{
				"✗",
				"Connection failed",
			},
		},
		{
			name: "error without suggestion",
			err:  New(ErrExec, "Command failed", ""),
			expectedParts: []string{
				"Command failed",
			},
			notExpected: []string{
				"suggestion",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()

			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part, "output should contain %q", part)
			}

			for _, part := range tt.notExpected {
				assert.NotContains(t, output, part, "output should not contain %q", part)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying network error")
	wrapped := Wrap(cause, "SSH connection failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrConn, wrapped.Code, "Wrap should default to ErrConn code")
	assert.Equal(t, "SSH connection failed", wrapped.Message)
	assert.Equal(t, cause, wrapped.Cause)
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("file not found")
	wrapped := WrapWithCode(cause, ErrConfig, "Failed to load servers.yaml", "Create the file first")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrConfig, wrapped.Code)
	assert.Equal(t, "Failed to load servers.yaml", wrapped.Message)
	assert.Equal(t, "Create the file first", wrapped.Suggestion)
	assert.Equal(t, cause, wrapped.Cause)
}

func TestErrorWrappingPreservesCause(t *testing.T) {
	original := errors.New("original error")
	wrapped := WrapWithCode(original, ErrTunnel, "Tunnel spawn failed", "")

	assert.Equal(t, original, wrapped.Cause)

	errStr := wrapped.Error()
	assert.Contains(t, errStr, "original error")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := WrapWithCode(cause, ErrExec, "Execution failed", "")

	unwrapped := wrapped.Unwrap()
	assert.Equal(t, cause, unwrapped)
}

func TestErrorsIs(t *testing.T) {
	cause := errors.New("specific error")
	wrapped := WrapWithCode(cause, ErrTimeout, "Command timed out", "")

	assert.True(t, errors.Is(wrapped, cause))
}

func TestErrorsAs(t *testing.T) {
	wrapped := New(ErrConfig, "Config error", "Fix config")

	var fdErr *Error
	ok := errors.As(wrapped, &fdErr)

	assert.True(t, ok)
	assert.Equal(t, ErrConfig, fdErr.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrAuth, "Auth error", "")

	assert.True(t, IsCode(err, ErrAuth))
	assert.False(t, IsCode(err, ErrConn))
	assert.False(t, IsCode(errors.New("standard error"), ErrAuth))
	assert.False(t, IsCode(nil, ErrAuth))
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("connection timed out after 10s"),
		ErrConn,
		"Cannot connect to server 'gpu-01'",
		"Check the host is reachable",
	)

	output := err.Error()
	lines := strings.Split(output, "\n")

	// First line should have failure symbol and main message
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "✗"), "First line should start with failure symbol")
	assert.Contains(t, lines[0], "Cannot connect to server 'gpu-01'")
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantMsg string
	}{
		{
			name:    "zero exit code",
			code:    0,
			wantMsg: "exit code 0",
		},
		{
			name:    "non-zero exit code",
			code:    1,
			wantMsg: "exit code 1",
		},
		{
			name:    "signal exit code",
			code:    137,
			wantMsg: "exit code 137",
		},
		{
			name:    "negative exit code",
			code:    -1,
			wantMsg: "exit code -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewExitError(tt.code)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOk   bool
	}{
		{
			name:     "ExitError returns code",
			err:      NewExitError(42),
			wantCode: 42,
			wantOk:   true,
		},
		{
			name:     "ExitError with zero",
			err:      NewExitError(0),
			wantCode: 0,
			wantOk:   true,
		},
		{
			name:     "standard error returns false",
			err:      errors.New("standard error"),
			wantCode: 0,
			wantOk:   false,
		},
		{
			name:     "nil error returns false",
			err:      nil,
			wantCode: 0,
			wantOk:   false,
		},
		{
			name:     "structured Error returns false",
			err:      New(ErrExec, "test", ""),
			wantCode: 0,
			wantOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := GetExitCode(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
