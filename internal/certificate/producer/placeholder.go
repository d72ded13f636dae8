package producer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/models"
)

// Placeholder returns synthetic artifact references without calling a backend.
// It is wired when no producer URL is configured, for local runs and demos.
type Placeholder struct {
	delay time.Duration
}

func NewPlaceholder(delay time.Duration) *Placeholder {
	return &Placeholder{delay: delay}
}

func (p *Placeholder) Produce(ctx context.Context, _ models.Customization, _ catalog.Model) (models.ArtifactPair, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.ArtifactPair{}, NewError(ErrorTimeout, "placeholder", "cancelled", ctx.Err())
		case <-timer.C:
		}
	}
	name := uuid.NewString()
	return models.ArtifactPair{
		VerifiedRef:  name + "_verified.png",
		WallpaperRef: name + "_wallpaper.png",
	}, nil
}
