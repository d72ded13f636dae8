package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"imrich/internal/certificate/models"
	id "imrich/pkg/domain"
)

// InMemoryStore keeps certificates in process memory. The serial map is the
// uniqueness guard; inserts check and write under one lock.
type InMemoryStore struct {
	mu       sync.RWMutex
	bySerial map[models.Serial]*models.Certificate
	byOwner  map[id.AccountID][]models.Serial
	nextID   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		bySerial: make(map[models.Serial]*models.Certificate),
		byOwner:  make(map[id.AccountID][]models.Serial),
	}
}

// Insert stores cert and assigns its ID. CreatedAt defaults to now when unset.
func (s *InMemoryStore) Insert(ctx context.Context, cert *models.Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySerial[cert.Serial]; exists {
		return ErrDuplicateSerial
	}
	s.nextID++
	cert.ID = s.nextID
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}
	s.bySerial[cert.Serial] = cert.Clone()
	s.byOwner[cert.Owner.AccountID] = append(s.byOwner[cert.Owner.AccountID], cert.Serial)
	return nil
}

func (s *InMemoryStore) GetBySerial(ctx context.Context, serial models.Serial) (*models.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.bySerial[serial]
	if !ok {
		return nil, ErrNotFound
	}
	return cert.Clone(), nil
}

// ListByOwner returns the owner's certificates, newest first, ties by id descending.
func (s *InMemoryStore) ListByOwner(ctx context.Context, owner id.AccountID) ([]*models.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	serials := s.byOwner[owner]
	out := make([]*models.Certificate, 0, len(serials))
	for _, serial := range serials {
		out = append(out, s.bySerial[serial].Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Certificate) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// UpdatePaymentStatus applies a pending -> terminal transition atomically.
func (s *InMemoryStore) UpdatePaymentStatus(ctx context.Context, serial models.Serial, status models.PaymentStatus) (*models.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.bySerial[serial]
	if !ok {
		return nil, ErrNotFound
	}
	if err := cert.CanUpdatePayment(status); err != nil {
		return nil, ErrInvalidTransition
	}
	cert.ApplyPaymentStatus(status)
	return cert.Clone(), nil
}

// Count returns the number of stored certificates.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySerial), nil
}

func (s *InMemoryStore) Health(context.Context) error { return nil }
