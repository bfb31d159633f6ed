package store

import (
	"context"
	"sync"
)

// Table names used as notification keys.
const (
	tableUsers          = "users"
	tableWallets        = "wallets"
	tableTrips          = "trips"
	tablePayments       = "payments"
	tableAuthTokens     = "auth_tokens"
	tableRoutes         = "routes"
	tableFavoriteRoutes = "favorite_routes"
)

// notifier is a registry of live subscriptions keyed by the tables their
// query depends on. Writes publish their table after commit; matching
// subscribers get a coalescing dirty signal and re-run their query.
type notifier struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	tables map[string]struct{}
	dirty  chan struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: map[*subscription]struct{}{}}
}

func (n *notifier) subscribe(tables ...string) *subscription {
	sub := &subscription{
		tables: make(map[string]struct{}, len(tables)),
		dirty:  make(chan struct{}, 1),
	}
	for _, table := range tables {
		sub.tables[table] = struct{}{}
	}
	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

func (n *notifier) unsubscribe(sub *subscription) {
	n.mu.Lock()
	delete(n.subs, sub)
	n.mu.Unlock()
}

func (n *notifier) publish(tables ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		for _, table := range tables {
			if _, ok := sub.tables[table]; !ok {
				continue
			}
			select {
			case sub.dirty <- struct{}{}:
			default:
				// a recompute is already pending; it will observe this write
			}
			break
		}
	}
}

// watchQuery runs load once immediately, then again after every commit
// that touches one of the given tables, delivering each result on the
// returned channel. skipRepeat, when non-nil, suppresses emissions whose
// value equals the previously delivered one. The watch ends when the
// cancel func is called or ctx is done; the channel is then closed.
func watchQuery[T any](ctx context.Context, s *Store, tables []string, load func(context.Context) (T, error), skipRepeat func(prev, next T) bool) (<-chan T, func()) {
	sub := s.notes.subscribe(tables...)
	out := make(chan T, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	s.metrics.SubscriptionsActive.Inc()
	go func() {
		defer func() {
			s.notes.unsubscribe(sub)
			close(out)
			s.metrics.SubscriptionsActive.Dec()
		}()

		var prev T
		delivered := false
		for {
			next, err := load(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("watch query failed", "error", err)
				s.metrics.Errors.WithLabelValues("store_watch").Inc()
			case delivered && skipRepeat != nil && skipRepeat(prev, next):
				// unchanged, nothing to deliver
			default:
				select {
				case out <- next:
					prev = next
					delivered = true
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-sub.dirty:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, cancel
}
