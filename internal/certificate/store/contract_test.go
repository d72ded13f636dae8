package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"imrich/internal/certificate/models"
	"imrich/internal/certificate/store"
	id "imrich/pkg/domain"
	"imrich/pkg/platform/sentinel"
)

// Store is the contract every certificate backend satisfies.
type Store interface {
	Insert(ctx context.Context, cert *models.Certificate) error
	GetBySerial(ctx context.Context, serial models.Serial) (*models.Certificate, error)
	ListByOwner(ctx context.Context, owner id.AccountID) ([]*models.Certificate, error)
	UpdatePaymentStatus(ctx context.Context, serial models.Serial, status models.PaymentStatus) (*models.Certificate, error)
	Count(ctx context.Context) (int, error)
}

// contractSuite runs the same behavioural checks against any backend.
type contractSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
	base     time.Time
}

func (s *contractSuite) SetupTest() {
	s.store = s.newStore()
	s.base = time.Date(2024, 11, 16, 12, 0, 0, 0, time.UTC)
}

func (s *contractSuite) newCert(serial string, owner string, at time.Time) *models.Certificate {
	return &models.Certificate{
		Serial: models.Serial(serial),
		Owner:  models.Owner{AccountID: id.AccountID(owner), Email: id.Email(owner + "@example.com")},
		Customization: models.Customization{
			Style: "elegant", ColorScheme: "gold", Elements: "luxury", Mood: "luxurious", Model: "dalle",
		},
		ArtifactVerifiedRef:  serial + "_verified.png",
		ArtifactWallpaperRef: serial + "_wallpaper.png",
		PaymentStatus:        models.PaymentStatusPending,
		CreatedAt:            at,
	}
}

func (s *contractSuite) TestInsertAndGet() {
	ctx := context.Background()
	cert := s.newCert("RICH-20241116-AAAAAAAA", "alice", s.base)

	s.Require().NoError(s.store.Insert(ctx, cert))
	s.NotZero(cert.ID)

	got, err := s.store.GetBySerial(ctx, cert.Serial)
	s.Require().NoError(err)
	s.Equal(cert.ID, got.ID)
	s.Equal(cert.Serial, got.Serial)
	s.Equal(cert.Owner, got.Owner)
	s.Equal(cert.Customization, got.Customization)
	s.Equal(cert.ArtifactVerifiedRef, got.ArtifactVerifiedRef)
	s.Equal(cert.ArtifactWallpaperRef, got.ArtifactWallpaperRef)
	s.Equal(models.PaymentStatusPending, got.PaymentStatus)
	s.True(cert.CreatedAt.Equal(got.CreatedAt))
}

func (s *contractSuite) TestGetUnknownSerial() {
	_, err := s.store.GetBySerial(context.Background(), "RICH-20241116-ABCDEFGH")
	s.ErrorIs(err, store.ErrNotFound)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestDuplicateSerialNeverOverwrites() {
	ctx := context.Background()
	first := s.newCert("RICH-20241116-DUPDUP00", "alice", s.base)
	s.Require().NoError(s.store.Insert(ctx, first))

	second := s.newCert("RICH-20241116-DUPDUP00", "bob", s.base.Add(time.Minute))
	err := s.store.Insert(ctx, second)
	s.ErrorIs(err, store.ErrDuplicateSerial)
	s.ErrorIs(err, sentinel.ErrConflict)

	got, err := s.store.GetBySerial(ctx, first.Serial)
	s.Require().NoError(err)
	s.Equal(first.Owner, got.Owner)

	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *contractSuite) TestListByOwnerOrdering() {
	ctx := context.Background()
	older := s.newCert("RICH-20241116-OLDER000", "alice", s.base)
	tieA := s.newCert("RICH-20241116-TIEAAAAA", "alice", s.base.Add(time.Hour))
	tieB := s.newCert("RICH-20241116-TIEBBBBB", "alice", s.base.Add(time.Hour))
	other := s.newCert("RICH-20241116-OTHER000", "bob", s.base.Add(2*time.Hour))
	for _, c := range []*models.Certificate{older, tieA, tieB, other} {
		s.Require().NoError(s.store.Insert(ctx, c))
	}

	list, err := s.store.ListByOwner(ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal(tieB.Serial, list[0].Serial, "ties broken by id descending")
	s.Equal(tieA.Serial, list[1].Serial)
	s.Equal(older.Serial, list[2].Serial)

	empty, err := s.store.ListByOwner(ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *contractSuite) TestPaymentTransitions() {
	ctx := context.Background()
	cert := s.newCert("RICH-20241116-PAYPAY00", "alice", s.base)
	s.Require().NoError(s.store.Insert(ctx, cert))

	updated, err := s.store.UpdatePaymentStatus(ctx, cert.Serial, models.PaymentStatusCompleted)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusCompleted, updated.PaymentStatus)

	_, err = s.store.UpdatePaymentStatus(ctx, cert.Serial, models.PaymentStatusCompleted)
	s.ErrorIs(err, store.ErrInvalidTransition)

	_, err = s.store.UpdatePaymentStatus(ctx, cert.Serial, models.PaymentStatusPending)
	s.ErrorIs(err, store.ErrInvalidTransition)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.UpdatePaymentStatus(ctx, cert.Serial, models.PaymentStatusFailed)
	s.ErrorIs(err, store.ErrInvalidTransition)

	_, err = s.store.UpdatePaymentStatus(ctx, "RICH-20241116-NOSUCH00", models.PaymentStatusCompleted)
	s.ErrorIs(err, store.ErrNotFound)

	got, err := s.store.GetBySerial(ctx, cert.Serial)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusCompleted, got.PaymentStatus)
	s.Equal(cert.ArtifactVerifiedRef, got.ArtifactVerifiedRef, "immutable fields untouched")
}

func (s *contractSuite) TestPendingToFailed() {
	ctx := context.Background()
	cert := s.newCert("RICH-20241116-FAILED00", "alice", s.base)
	s.Require().NoError(s.store.Insert(ctx, cert))

	updated, err := s.store.UpdatePaymentStatus(ctx, cert.Serial, models.PaymentStatusFailed)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusFailed, updated.PaymentStatus)

	_, err = s.store.UpdatePaymentStatus(ctx, cert.Serial, models.PaymentStatusCompleted)
	s.ErrorIs(err, store.ErrInvalidTransition)
}

// TestConcurrentTransitionSucceedsOnce races completions against each other.
func (s *contractSuite) TestConcurrentTransitionSucceedsOnce() {
	ctx := context.Background()
	cert := s.newCert("RICH-20241116-RACE0000", "alice", s.base)
	s.Require().NoError(s.store.Insert(ctx, cert))

	const goroutines = 20
	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.UpdatePaymentStatus(ctx, cert.Serial, models.PaymentStatusCompleted)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, store.ErrInvalidTransition):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(goroutines-1), rejected.Load())
}

// TestConcurrentDuplicateInsertsOneWins races inserts of the same serial.
func (s *contractSuite) TestConcurrentDuplicateInsertsOneWins() {
	ctx := context.Background()
	const goroutines = 20
	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cert := s.newCert("RICH-20241116-SAMESAME", fmt.Sprintf("owner%d", i), s.base)
			err := s.store.Insert(ctx, cert)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, store.ErrDuplicateSerial):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(goroutines-1), dup.Load())
	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}
