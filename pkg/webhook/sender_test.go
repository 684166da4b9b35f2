package webhook_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/webhook"
)

func TestSender_Deliver(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var gotBody string
		var gotHeaders http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeaders = r.Header.Clone()
			buf := make([]byte, r.ContentLength)
			_, _ = r.Body.Read(buf)
			gotBody = string(buf)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		s := webhook.NewSender()
		result, err := s.Deliver(context.Background(), srv.URL, map[string]string{"X-Custom": "yes"}, []byte(`{"event":"ready"}`))

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.Equal(t, `{"event":"ready"}`, gotBody)
		assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
		assert.Equal(t, "yes", gotHeaders.Get("X-Custom"))
	})

	t.Run("permanent on 4xx", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad payload", http.StatusBadRequest)
		}))
		defer srv.Close()

		s := webhook.NewSender()
		result, err := s.Deliver(context.Background(), srv.URL, nil, []byte(`{}`))

		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
		assert.True(t, webhook.IsPermanent(err))
		assert.Equal(t, http.StatusBadRequest, result.StatusCode)
		assert.False(t, result.Success)
	})

	t.Run("temporary on 5xx", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		s := webhook.NewSender()
		_, err := s.Deliver(context.Background(), srv.URL, nil, []byte(`{}`))

		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
		assert.False(t, webhook.IsPermanent(err))
	})

	t.Run("temporary on 429", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		s := webhook.NewSender()
		_, err := s.Deliver(context.Background(), srv.URL, nil, []byte(`{}`))

		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		s := webhook.NewSender(webhook.WithRequestTimeout(20 * time.Millisecond))
		_, err := s.Deliver(context.Background(), srv.URL, nil, []byte(`{}`))

		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrTimeout)
	})

	t.Run("connection refused is temporary", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		s := webhook.NewSender()
		_, err := s.Deliver(context.Background(), srv.URL, nil, []byte(`{}`))

		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
	})
}
