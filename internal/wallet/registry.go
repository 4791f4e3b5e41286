package wallet

import (
	"log/slog"
	"slices"
	"sort"
	"sync"
)

// Registry is the thread-safe wallet subscription map.
type Registry struct {
	mu sync.RWMutex

	// Address -> subscriber chat ids in subscription order. An address is
	// removed as soon as its last subscriber leaves.
	wallets map[string][]int64

	store  Store
	logger *slog.Logger
}

// NewRegistry creates an empty registry. store may be nil for an
// in-memory-only registry.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		wallets: make(map[string][]int64),
		store:   store,
		logger:  logger,
	}
}

// Load replaces the registry contents with the store's document. Invalid
// addresses and empty subscriber lists are dropped; addresses that differ
// only in case are merged.
func (r *Registry) Load() error {
	if r.store == nil {
		return nil
	}

	loaded, err := r.store.Load()
	if err != nil {
		return err
	}

	wallets := make(map[string][]int64, len(loaded))
	for addr, subs := range loaded {
		norm, err := Normalize(addr)
		if err != nil {
			r.logger.Warn("dropping invalid wallet from store", "address", addr)
			continue
		}
		for _, sub := range subs {
			if !slices.Contains(wallets[norm], sub) {
				wallets[norm] = append(wallets[norm], sub)
			}
		}
	}
	for addr, subs := range wallets {
		if len(subs) == 0 {
			delete(wallets, addr)
		}
	}

	r.mu.Lock()
	r.wallets = wallets
	r.mu.Unlock()

	r.logger.Info("wallet registry loaded", "wallets", len(wallets))
	return nil
}

// Add subscribes subscriber to addr. It reports false when the subscriber
// was already present.
func (r *Registry) Add(addr string, subscriber int64) (bool, error) {
	norm, err := Normalize(addr)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.wallets[norm], subscriber) {
		return false, nil
	}
	r.wallets[norm] = append(r.wallets[norm], subscriber)
	r.persistLocked()
	return true, nil
}

// Remove unsubscribes subscriber from addr. It reports false when the
// subscriber was not monitoring addr.
func (r *Registry) Remove(addr string, subscriber int64) bool {
	norm, err := Normalize(addr)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.wallets[norm]
	i := slices.Index(subs, subscriber)
	if i < 0 {
		return false
	}

	subs = slices.Delete(slices.Clone(subs), i, i+1)
	if len(subs) == 0 {
		delete(r.wallets, norm)
	} else {
		r.wallets[norm] = subs
	}
	r.persistLocked()
	return true
}

// Snapshot returns a deep copy of the registry (read-locked).
func (r *Registry) Snapshot() map[string][]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyLocked()
}

// Subscribers returns a copy of the chat ids subscribed to addr.
func (r *Registry) Subscribers(addr string) []int64 {
	norm, err := Normalize(addr)
	if err != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.wallets[norm])
}

// WalletsFor returns the addresses subscriber monitors, sorted.
func (r *Registry) WalletsFor(subscriber int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []string
	for addr, subs := range r.wallets {
		if slices.Contains(subs, subscriber) {
			result = append(result, addr)
		}
	}
	sort.Strings(result)
	return result
}

// Len returns the number of monitored wallets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.wallets)
}

// SubscriptionCount returns the total number of (wallet, subscriber) pairs.
func (r *Registry) SubscriptionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, subs := range r.wallets {
		n += len(subs)
	}
	return n
}

func (r *Registry) copyLocked() map[string][]int64 {
	result := make(map[string][]int64, len(r.wallets))
	for addr, subs := range r.wallets {
		result[addr] = slices.Clone(subs)
	}
	return result
}

// persistLocked writes the current state to the store (caller must hold
// the write lock). Failures leave the in-memory state authoritative.
func (r *Registry) persistLocked() {
	if r.store == nil {
		return
	}
	if err := r.store.Save(r.copyLocked()); err != nil {
		r.logger.Error("failed to persist wallet registry", "error", err)
	}
}
