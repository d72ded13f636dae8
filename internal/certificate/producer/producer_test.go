package producer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/models"
)

var (
	dalle = catalog.Model{ID: "dalle", UpstreamModel: "dall-e-3", DefaultSize: "1024x1792"}
	cust  = models.Customization{Style: "elegant", ColorScheme: "gold", Elements: "luxury", Mood: "luxurious", Model: "dalle"}
)

func TestHTTPProducer(t *testing.T) {
	t.Run("returns complete pair", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/artifacts", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var req produceRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "dall-e-3", req.UpstreamModel)
			assert.Equal(t, "elegant", req.Customization.Style)

			_, _ = w.Write([]byte(`{"verified_ref":"a_verified.png","wallpaper_ref":"a_wallpaper.png"}`))
		}))
		defer srv.Close()

		pair, err := NewHTTPProducer(srv.URL, "secret", time.Second).Produce(context.Background(), cust, dalle)
		require.NoError(t, err)
		assert.Equal(t, "a_verified.png", pair.VerifiedRef)
		assert.Equal(t, "a_wallpaper.png", pair.WallpaperRef)
	})

	tests := []struct {
		name    string
		status  int
		body    string
		wantCat ErrorCategory
	}{
		{"partial pair", http.StatusOK, `{"verified_ref":"a.png"}`, ErrorUnavailable},
		{"garbage body", http.StatusOK, `not json`, ErrorUnavailable},
		{"quota", http.StatusTooManyRequests, ``, ErrorQuotaExceeded},
		{"billing", http.StatusPaymentRequired, ``, ErrorQuotaExceeded},
		{"gateway timeout", http.StatusGatewayTimeout, ``, ErrorTimeout},
		{"server error", http.StatusInternalServerError, ``, ErrorUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPProducer(srv.URL, "", time.Second).Produce(context.Background(), cust, dalle)
			require.Error(t, err)
			assert.Equal(t, tt.wantCat, GetCategory(err))
		})
	}

	t.Run("context deadline becomes timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := NewHTTPProducer(srv.URL, "", time.Second).Produce(ctx, cust, dalle)
		assert.Equal(t, ErrorTimeout, GetCategory(err))
	})
}

func TestPlaceholder(t *testing.T) {
	pair, err := NewPlaceholder(0).Produce(context.Background(), cust, dalle)
	require.NoError(t, err)
	assert.True(t, pair.Complete())
	assert.True(t, strings.HasSuffix(pair.VerifiedRef, "_verified.png"))
	assert.Equal(t, strings.TrimSuffix(pair.VerifiedRef, "_verified.png"),
		strings.TrimSuffix(pair.WallpaperRef, "_wallpaper.png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPlaceholder(time.Hour).Produce(ctx, cust, dalle)
	assert.Equal(t, ErrorTimeout, GetCategory(err))
}

func TestErrorFormatting(t *testing.T) {
	err := NewError(ErrorQuotaExceeded, "gemini", "limit hit", errors.New("429"))
	assert.Equal(t, "producer gemini [quota_exceeded]: limit hit: 429", err.Error())
	assert.Equal(t, ErrorUnavailable, GetCategory(errors.New("plain")))
}
