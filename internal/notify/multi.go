package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
)

// Multi fans a notification out to several senders
type Multi struct {
	senders []Sender
}

// NewMulti creates a Multi sender over the given backends
func NewMulti(senders ...Sender) *Multi {
	return &Multi{senders: senders}
}

// Send delivers to all backends concurrently and joins their errors
func (m *Multi) Send(ctx context.Context, n reconciler.Notification) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, s := range m.senders {
		wg.Add(1)
		go func(s Sender) {
			defer wg.Done()
			if err := s.Send(ctx, n); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(s)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Name returns "multi"
func (m *Multi) Name() string {
	return "multi"
}
