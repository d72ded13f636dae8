package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/models"
)

const maxResponseBytes = 1 << 20

// HTTPProducer calls an image backend that accepts the customization as JSON
// and answers with the two stored artifact references.
type HTTPProducer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPProducer builds a producer for baseURL. The client timeout is a
// backstop; the orchestrator's context deadline is the real bound.
func NewHTTPProducer(baseURL, apiKey string, timeout time.Duration) *HTTPProducer {
	return &HTTPProducer{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout + 5*time.Second},
	}
}

type produceRequest struct {
	Model         string               `json:"model"`
	UpstreamModel string               `json:"upstream_model,omitempty"`
	Size          string               `json:"size,omitempty"`
	Customization models.Customization `json:"customization"`
}

type produceResponse struct {
	VerifiedRef  string `json:"verified_ref"`
	WallpaperRef string `json:"wallpaper_ref"`
}

func (p *HTTPProducer) Produce(ctx context.Context, c models.Customization, m catalog.Model) (models.ArtifactPair, error) {
	body, err := json.Marshal(produceRequest{
		Model:         m.ID,
		UpstreamModel: m.UpstreamModel,
		Size:          m.DefaultSize,
		Customization: c,
	})
	if err != nil {
		return models.ArtifactPair{}, NewError(ErrorUnavailable, m.ID, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/artifacts", bytes.NewReader(body))
	if err != nil {
		return models.ArtifactPair{}, NewError(ErrorUnavailable, m.ID, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isTimeout(err) {
			return models.ArtifactPair{}, NewError(ErrorTimeout, m.ID, "backend did not respond in time", err)
		}
		return models.ArtifactPair{}, NewError(ErrorUnavailable, m.ID, "backend request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return models.ArtifactPair{}, statusError(m.ID, resp.StatusCode)
	}

	var out produceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return models.ArtifactPair{}, NewError(ErrorUnavailable, m.ID, "decode response", err)
	}
	pair := models.ArtifactPair{VerifiedRef: out.VerifiedRef, WallpaperRef: out.WallpaperRef}
	if !pair.Complete() {
		return models.ArtifactPair{}, NewError(ErrorUnavailable, m.ID, "backend returned a partial artifact pair", nil)
	}
	return pair, nil
}

func statusError(model string, status int) *Error {
	msg := fmt.Sprintf("backend answered %d", status)
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return NewError(ErrorQuotaExceeded, model, msg, nil)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return NewError(ErrorTimeout, model, msg, nil)
	default:
		return NewError(ErrorUnavailable, model, msg, nil)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
