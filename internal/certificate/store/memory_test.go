package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"imrich/internal/certificate/models"
	"imrich/internal/certificate/store"
)

func TestInMemoryStoreContract(t *testing.T) {
	suite.Run(t, &contractSuite{newStore: func() Store { return store.NewInMemoryStore() }})
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	cert := &models.Certificate{
		Serial:               "RICH-20241116-COPY0000",
		Owner:                models.Owner{AccountID: "alice"},
		ArtifactVerifiedRef:  "v.png",
		ArtifactWallpaperRef: "w.png",
		PaymentStatus:        models.PaymentStatusPending,
	}
	require.NoError(t, s.Insert(ctx, cert))
	assert.WithinDuration(t, time.Now(), cert.CreatedAt, time.Second, "zero CreatedAt defaults to now")

	got, err := s.GetBySerial(ctx, cert.Serial)
	require.NoError(t, err)
	got.PaymentStatus = models.PaymentStatusFailed
	got.ArtifactVerifiedRef = "tampered.png"

	again, err := s.GetBySerial(ctx, cert.Serial)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, again.PaymentStatus)
	assert.Equal(t, "v.png", again.ArtifactVerifiedRef)
}

func TestInMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := store.NewInMemoryStore()
	assert.ErrorIs(t, s.Insert(ctx, &models.Certificate{Serial: "RICH-20241116-CANCEL00"}), context.Canceled)
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
