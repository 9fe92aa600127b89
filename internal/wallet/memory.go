package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu        sync.Mutex
	wallets   map[string]*Wallet
	byTenant  map[string]string // tenant+currency -> wallet id
	entries   map[string][]Entry
	holds     map[string]*Hold
	holdKeys  map[string]string // wallet+key -> hold id
	topups    map[string]*Topup
	topupKeys map[string]string
	refunds   map[string]*Refund
	refundKey map[string]string
}

// NewMemoryStore creates a concurrency-safe in-memory wallet engine useful
// for unit tests. A single mutex stands in for the per-wallet row lock.
func NewMemoryStore() Store {
	return &memoryStore{
		wallets:   make(map[string]*Wallet),
		byTenant:  make(map[string]string),
		entries:   make(map[string][]Entry),
		holds:     make(map[string]*Hold),
		holdKeys:  make(map[string]string),
		topups:    make(map[string]*Topup),
		topupKeys: make(map[string]string),
		refunds:   make(map[string]*Refund),
		refundKey: make(map[string]string),
	}
}

func scopedKey(walletID, key string) string {
	return walletID + "\x00" + key
}

func (s *memoryStore) EnsureWallet(_ context.Context, tenantID, currency string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk := scopedKey(tenantID, currency)
	if id, ok := s.byTenant[tk]; ok {
		return *s.wallets[id], nil
	}

	w := &Wallet{
		ID:                  uuid.NewString(),
		TenantID:            tenantID,
		Currency:            currency,
		Available:           decimal.Zero,
		Reserved:            decimal.Zero,
		LowBalanceThreshold: decimal.Zero,
		AutoTopupAmount:     decimal.Zero,
		AutoTopupTrigger:    decimal.Zero,
		Status:              StatusActive,
		CreatedAt:           time.Now().UTC(),
	}
	s.wallets[w.ID] = w
	s.byTenant[tk] = w.ID
	return *w, nil
}

func (s *memoryStore) GetWallet(_ context.Context, walletID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *w, nil
}

func (s *memoryStore) UpdatePolicy(_ context.Context, walletID string, policy Policy) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	w.LowBalanceThreshold = policy.LowBalanceThreshold
	w.AutoTopupEnabled = policy.AutoTopupEnabled
	w.AutoTopupAmount = policy.AutoTopupAmount
	w.AutoTopupTrigger = policy.AutoTopupTrigger
	w.AllowNegative = policy.AllowNegative
	return *w, nil
}

func (s *memoryStore) SetStatus(_ context.Context, walletID, status string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	w.Status = status
	return *w, nil
}

func (s *memoryStore) appendEntry(w *Wallet, entryType string, amount decimal.Decimal, ref Reference, actorID string) Entry {
	e := Entry{
		ID:             uuid.NewString(),
		WalletID:       w.ID,
		Type:           entryType,
		Amount:         amount,
		RunningBalance: w.Available,
		ReferenceType:  ref.Type,
		ReferenceID:    ref.ID,
		ActorID:        actorID,
		CreatedAt:      time.Now().UTC(),
	}
	s.entries[w.ID] = append(s.entries[w.ID], e)
	return e
}

func (s *memoryStore) Charge(_ context.Context, walletID string, amount decimal.Decimal, ref Reference, actorID string) (Entry, error) {
	if !validAmount(amount) {
		return Entry{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return Entry{}, ErrWalletNotFound
	}
	if w.Status == StatusFrozen {
		return Entry{}, ErrWalletFrozen
	}
	if !w.AllowNegative && w.Effective().LessThan(amount) {
		return Entry{}, ErrInsufficientFunds
	}

	w.Available = w.Available.Sub(amount)
	return s.appendEntry(w, EntryDebit, amount.Neg(), ref, actorID), nil
}

func (s *memoryStore) Credit(_ context.Context, walletID string, amount decimal.Decimal, entryType string, ref Reference, actorID string) (Entry, error) {
	if !validAmount(amount) {
		return Entry{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return Entry{}, ErrWalletNotFound
	}

	w.Available = w.Available.Add(amount)
	return s.appendEntry(w, entryType, amount, ref, actorID), nil
}

func (s *memoryStore) CreateHold(_ context.Context, walletID string, amount decimal.Decimal, ref Reference, idempotencyKey string, expiresAt time.Time) (Hold, error) {
	if !validAmount(amount) {
		return Hold{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return Hold{}, ErrWalletNotFound
	}

	if id, ok := s.holdKeys[scopedKey(walletID, idempotencyKey)]; ok {
		existing := s.holds[id]
		if !existing.Amount.Equal(amount) || existing.ReferenceType != ref.Type || existing.ReferenceID != ref.ID {
			return Hold{}, ErrIdempotencyConflict
		}
		return *existing, nil
	}

	if w.Status == StatusFrozen {
		return Hold{}, ErrWalletFrozen
	}
	// Holds never honor allow_negative: a reservation is a promise of funds
	// that must actually exist.
	if w.Effective().LessThan(amount) {
		return Hold{}, ErrInsufficientFunds
	}

	w.Reserved = w.Reserved.Add(amount)
	h := &Hold{
		ID:             uuid.NewString(),
		WalletID:       walletID,
		Amount:         amount,
		ReferenceType:  ref.Type,
		ReferenceID:    ref.ID,
		IdempotencyKey: idempotencyKey,
		Status:         HoldActive,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now().UTC(),
	}
	s.holds[h.ID] = h
	s.holdKeys[scopedKey(walletID, idempotencyKey)] = h.ID
	s.appendEntry(w, EntryLock, decimal.Zero, ref, "")
	return *h, nil
}

func (s *memoryStore) GetHold(_ context.Context, holdID string) (Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[holdID]
	if !ok {
		return Hold{}, ErrHoldNotFound
	}
	return *h, nil
}

func (s *memoryStore) CaptureHold(_ context.Context, holdID, actorID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[holdID]
	if !ok {
		return Entry{}, ErrHoldNotFound
	}
	if h.Status != HoldActive {
		return Entry{}, ErrHoldNotActive
	}
	w := s.wallets[h.WalletID]
	if w.Status == StatusFrozen {
		return Entry{}, ErrWalletFrozen
	}

	w.Reserved = w.Reserved.Sub(h.Amount)
	w.Available = w.Available.Sub(h.Amount)
	h.Status = HoldCaptured
	return s.appendEntry(w, EntryDebit, h.Amount.Neg(), Reference{Type: h.ReferenceType, ID: h.ReferenceID}, actorID), nil
}

func (s *memoryStore) releaseLocked(h *Hold, terminal string) {
	w := s.wallets[h.WalletID]
	w.Reserved = w.Reserved.Sub(h.Amount)
	h.Status = terminal
	s.appendEntry(w, EntryUnlock, decimal.Zero, Reference{Type: h.ReferenceType, ID: h.ReferenceID}, "")
}

func (s *memoryStore) ReleaseHold(_ context.Context, holdID string) (Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[holdID]
	if !ok {
		return Hold{}, ErrHoldNotFound
	}
	if h.Status != HoldActive {
		return Hold{}, ErrHoldNotActive
	}
	s.releaseLocked(h, HoldReleased)
	return *h, nil
}

func (s *memoryStore) ExpireHolds(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, h := range s.holds {
		if h.Status == HoldActive && !h.ExpiresAt.After(now) {
			s.releaseLocked(h, HoldExpired)
			expired++
		}
	}
	return expired, nil
}

func (s *memoryStore) ActiveHolds(_ context.Context, walletID string) ([]Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[walletID]; !ok {
		return nil, ErrWalletNotFound
	}
	var holds []Hold
	for _, h := range s.holds {
		if h.WalletID == walletID && h.Status == HoldActive {
			holds = append(holds, *h)
		}
	}
	return holds, nil
}

func (s *memoryStore) CreateTopup(_ context.Context, t Topup) (Topup, error) {
	if !validAmount(t.Amount) {
		return Topup{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[t.WalletID]; !ok {
		return Topup{}, ErrWalletNotFound
	}

	if id, ok := s.topupKeys[scopedKey(t.WalletID, t.IdempotencyKey)]; ok {
		existing := s.topups[id]
		if !existing.Amount.Equal(t.Amount) || existing.Gateway != t.Gateway {
			return Topup{}, ErrIdempotencyConflict
		}
		return *existing, nil
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = TopupPending
	t.CreatedAt = time.Now().UTC()
	stored := t
	s.topups[stored.ID] = &stored
	s.topupKeys[scopedKey(t.WalletID, t.IdempotencyKey)] = stored.ID
	return stored, nil
}

func (s *memoryStore) GetTopup(_ context.Context, topupID string) (Topup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topups[topupID]
	if !ok {
		return Topup{}, ErrTopupNotFound
	}
	return *t, nil
}

func (s *memoryStore) topupEntryLocked(topupID string) Entry {
	for _, entries := range s.entries {
		for _, e := range entries {
			if e.Type == EntryTopup && e.ReferenceID == topupID {
				return e
			}
		}
	}
	return Entry{}
}

func (s *memoryStore) ConfirmTopup(_ context.Context, topupID, paymentReference, actorID string) (Topup, Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topups[topupID]
	if !ok {
		return Topup{}, Entry{}, ErrTopupNotFound
	}
	switch t.Status {
	case TopupPending:
	case TopupSuccess:
		// Gateway webhooks are redelivered; a repeat confirm is a no-op.
		return *t, s.topupEntryLocked(topupID), nil
	default:
		return Topup{}, Entry{}, ErrTopupNotPending
	}

	w := s.wallets[t.WalletID]
	w.Available = w.Available.Add(t.Amount)
	t.Status = TopupSuccess
	if paymentReference != "" {
		t.PaymentReference = paymentReference
	}
	t.ConfirmedAt = time.Now().UTC()
	entry := s.appendEntry(w, EntryTopup, t.Amount, Reference{Type: EntryTopup, ID: t.ID}, actorID)
	return *t, entry, nil
}

func (s *memoryStore) FailTopup(_ context.Context, topupID, reason string) (Topup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topups[topupID]
	if !ok {
		return Topup{}, ErrTopupNotFound
	}
	switch t.Status {
	case TopupPending:
	case TopupFailed:
		return *t, nil
	default:
		return Topup{}, ErrTopupNotPending
	}

	t.Status = TopupFailed
	t.FailureReason = reason
	t.FailedAt = time.Now().UTC()
	return *t, nil
}

func (s *memoryStore) ExpirePendingTopups(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, t := range s.topups {
		if t.Status == TopupPending && t.CreatedAt.Before(cutoff) {
			t.Status = TopupExpired
			expired++
		}
	}
	return expired, nil
}

func (s *memoryStore) TopupsSettledOn(_ context.Context, gateway string, day time.Time) ([]Topup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := day.Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	inRange := func(ts time.Time) bool {
		return !ts.Before(start) && ts.Before(end)
	}

	var topups []Topup
	for _, t := range s.topups {
		if t.Gateway != gateway {
			continue
		}
		if (t.Status == TopupSuccess && inRange(t.ConfirmedAt)) || (t.Status == TopupFailed && inRange(t.FailedAt)) {
			topups = append(topups, *t)
		}
	}
	return topups, nil
}

func (s *memoryStore) Refund(_ context.Context, walletID string, amount decimal.Decimal, ref Reference, reason, idempotencyKey, actorID string) (Entry, error) {
	if !validAmount(amount) {
		return Entry{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return Entry{}, ErrWalletNotFound
	}

	if id, ok := s.refundKey[scopedKey(walletID, idempotencyKey)]; ok {
		existing := s.refunds[id]
		if !existing.Amount.Equal(amount) || existing.ReferenceType != ref.Type || existing.ReferenceID != ref.ID {
			return Entry{}, ErrIdempotencyConflict
		}
		for _, e := range s.entries[walletID] {
			if e.ID == existing.EntryID {
				return e, nil
			}
		}
		return Entry{}, ErrChargeNotFound
	}

	charged := decimal.Zero
	refunded := decimal.Zero
	found := false
	for _, e := range s.entries[walletID] {
		if e.ReferenceType != ref.Type || e.ReferenceID != ref.ID {
			continue
		}
		switch e.Type {
		case EntryDebit:
			charged = charged.Add(e.Amount.Neg())
			found = true
		case EntryRefund:
			refunded = refunded.Add(e.Amount)
		}
	}
	if !found {
		return Entry{}, ErrChargeNotFound
	}
	if refunded.Add(amount).GreaterThan(charged) {
		return Entry{}, ErrRefundExceedsOriginal
	}

	w.Available = w.Available.Add(amount)
	entry := s.appendEntry(w, EntryRefund, amount, ref, actorID)
	r := &Refund{
		ID:             uuid.NewString(),
		WalletID:       walletID,
		Amount:         amount,
		ReferenceType:  ref.Type,
		ReferenceID:    ref.ID,
		EntryID:        entry.ID,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	s.refunds[r.ID] = r
	s.refundKey[scopedKey(walletID, idempotencyKey)] = r.ID
	return entry, nil
}

func (s *memoryStore) Entries(_ context.Context, walletID string, limit, offset int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[walletID]; !ok {
		return nil, ErrWalletNotFound
	}
	all := s.entries[walletID]
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]Entry, end-offset)
	copy(page, all[offset:end])
	return page, nil
}
