package logging

import (
	"bytes"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorCloser struct {
	err error
}

func (e *errorCloser) Close() error {
	return e.err
}

type mockTransaction struct {
	rollbackErr error
}

func (m *mockTransaction) Rollback() error {
	return m.rollbackErr
}

func TestSafeClose(t *testing.T) {
	t.Run("closes response body without logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"person":true}`))
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		require.NoError(t, err)

		SafeCloseWithLogging(resp.Body, logger, "responder_response_body")
		assert.Empty(t, buf.String())
	})

	t.Run("logs error when close fails", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		SafeCloseWithLogging(&errorCloser{err: assert.AnError}, logger, "redis_client")

		output := buf.String()
		assert.Contains(t, output, `"msg":"failed to close resource"`)
		assert.Contains(t, output, `"operation":"redis_client"`)
	})

	t.Run("nil closer is ignored", func(t *testing.T) {
		SafeCloseWithLogging(nil, nil, "nothing")
	})
}

func TestSafeRollback(t *testing.T) {
	t.Run("logs rollback errors", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		SafeRollbackWithLogging(&mockTransaction{rollbackErr: assert.AnError}, logger, "clear_store")

		output := buf.String()
		assert.Contains(t, output, `"msg":"failed to rollback transaction"`)
		assert.Contains(t, output, `"operation":"clear_store"`)
	})

	t.Run("ignores already committed transactions", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		SafeRollbackWithLogging(&mockTransaction{rollbackErr: sql.ErrTxDone}, logger, "clear_store")
		SafeRollbackWithLogging(&mockTransaction{}, logger, "clear_store")

		assert.Empty(t, buf.String())
	})
}

func TestHandleDeferredError(t *testing.T) {
	t.Run("surfaces deferred error when the function succeeded", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewStructuredLogger(&buf, slog.LevelInfo)

		testFunc := func() (err error) {
			defer HandleDeferredError(&err, func() error {
				return assert.AnError
			}, logger, "close_store")
			return nil
		}

		err := testFunc()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "close_store")
		assert.True(t, errors.Is(err, assert.AnError))
		assert.Contains(t, buf.String(), `"msg":"deferred operation failed"`)
	})

	t.Run("keeps the original error", func(t *testing.T) {
		original := errors.New("tick failed")

		testFunc := func() (err error) {
			defer HandleDeferredError(&err, func() error {
				return assert.AnError
			}, nil, "close_store")
			return original
		}

		assert.Equal(t, original, testFunc())
	})
}
