package refund

import (
	"context"
	"fmt"
	"time"

	"github.com/pointbarre/quoteapi/internal/lock"
	"github.com/pointbarre/quoteapi/internal/obs"
)

// Service composes and persists credit notes.
type Service struct {
	Store    *Store
	Composer Composer
	// Locks serialises refunds per order when set, so two concurrent
	// requests cannot both read the same refundable quantities.
	Locks *lock.Locker
}

// Issued is a persisted credit note.
type Issued struct {
	ID int64 `json:"id"`
	CreditNote
}

// Issue builds a credit note for the order and writes it atomically.
func (s *Service) Issue(ctx context.Context, orderID int64, req Request) (Issued, error) {
	if s.Locks != nil {
		var issued Issued
		err := s.Locks.WithLock(ctx, fmt.Sprintf("refund:order:%d", orderID), 30*time.Second, func(ctx context.Context) error {
			var err error
			issued, err = s.issue(ctx, orderID, req)
			return err
		})
		return issued, err
	}
	return s.issue(ctx, orderID, req)
}

func (s *Service) issue(ctx context.Context, orderID int64, req Request) (Issued, error) {
	order, err := s.Store.Order(ctx, orderID)
	if err != nil {
		return Issued{}, err
	}
	note, err := s.Composer.Compose(ctx, order, req)
	if err != nil {
		return Issued{}, err
	}
	id, err := s.Store.Save(ctx, note)
	if err != nil {
		obs.ObserveCreditNote("error")
		return Issued{}, err
	}
	obs.ObserveCreditNote(string(note.Kind))
	return Issued{ID: id, CreditNote: note}, nil
}
