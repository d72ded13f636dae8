package service

import (
	"strings"

	"imrich/internal/certificate/models"
)

// URLs renders artifact references and verification links.
type URLs struct {
	AssetBase  string
	PublicBase string
}

func DefaultURLs() URLs {
	return URLs{AssetBase: "/api/images/", PublicBase: "http://localhost:3000"}
}

// Asset joins the asset base with ref. Absolute references pass through.
func (u URLs) Asset(ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "/") {
		return ref
	}
	base := u.AssetBase
	if base == "" {
		return ref
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + ref
}

// Verification is the public page a QR code points at.
func (u URLs) Verification(serial models.Serial) string {
	if u.PublicBase == "" {
		return ""
	}
	return strings.TrimSuffix(u.PublicBase, "/") + "/verify/" + serial.String()
}

// Response renders the issuance and listing item shape.
func (u URLs) Response(cert *models.Certificate) models.CertificateResponse {
	return models.CertificateResponse{
		ID:                cert.ID,
		Serial:            cert.Serial,
		ImageURLVerified:  u.Asset(cert.ArtifactVerifiedRef),
		ImageURLWallpaper: u.Asset(cert.ArtifactWallpaperRef),
		CreatedAt:         cert.CreatedAt,
		PaymentStatus:     cert.PaymentStatus,
		VerificationURL:   u.Verification(cert.Serial),
	}
}

// Responses renders a list, preserving order.
func (u URLs) Responses(certs []*models.Certificate) []models.CertificateResponse {
	out := make([]models.CertificateResponse, 0, len(certs))
	for _, c := range certs {
		out = append(out, u.Response(c))
	}
	return out
}
