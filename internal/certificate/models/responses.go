package models

import "time"

// CertificateResponse is the issuance and listing item shape.
type CertificateResponse struct {
	ID                int64         `json:"id"`
	Serial            Serial        `json:"serial"`
	ImageURLVerified  string        `json:"image_url_verified"`
	ImageURLWallpaper string        `json:"image_url_wallpaper"`
	CreatedAt         time.Time     `json:"created_at"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	VerificationURL   string        `json:"verification_url,omitempty"`
}

// ModelInfo is one entry of GET /api/models.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
}

// ModelsResponse is the body of GET /api/models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}
