// Package producer is the boundary to the AI image backend. A producer turns a
// validated customization into one verified and one wallpaper artifact.
package producer

import (
	"context"

	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/models"
)

// Producer generates both artifacts in one call. Implementations must honour
// ctx cancellation and return either a complete pair or an *Error.
type Producer interface {
	Produce(ctx context.Context, customization models.Customization, model catalog.Model) (models.ArtifactPair, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, customization models.Customization, model catalog.Model) (models.ArtifactPair, error)

func (f ProducerFunc) Produce(ctx context.Context, c models.Customization, m catalog.Model) (models.ArtifactPair, error) {
	return f(ctx, c, m)
}
