package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := errors.New("boom")
	inner := Wrap(base, CodeUpstreamTimeout, "image generation timed out")
	outer := fmt.Errorf("issue: %w", Wrap(inner, CodeInternal, "wrapped"))

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeUpstreamTimeout))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(base, CodeInternal))
	assert.ErrorIs(t, outer, base)
}

func TestIsChecksOutermostCode(t *testing.T) {
	err := Wrap(New(CodeNotFound, "missing"), CodeInternal, "lookup failed")
	assert.True(t, Is(err, CodeInternal))
	assert.False(t, Is(err, CodeNotFound))
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidTransition, http.StatusConflict},
		{CodeArtifactUnavailable, http.StatusBadGateway},
		{CodeUpstreamTimeout, http.StatusGatewayTimeout},
		{CodeUpstreamQuotaExceeded, http.StatusServiceUnavailable},
		{CodeSerialExhausted, http.StatusInternalServerError},
		{Code("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, ToHTTPStatus(tt.code))
		})
	}
}
