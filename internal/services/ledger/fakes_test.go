package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"creditledger/internal/models"
	"creditledger/internal/repositories"
)

// fakeStore is an in-memory WalletRepository with real conditional
// update and rollback semantics, so concurrency and atomicity behavior
// can be exercised without a database.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	wallets      map[uint]*models.Wallet
	transactions []*models.Transaction
	entitlements map[string]*models.Entitlement
	nextID       uint

	failCreateTransaction error
	failUpsertEntitlement error
	casDenials            int
	afterCommit           func(*fakeStore)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		wallets:      make(map[uint]*models.Wallet),
		entitlements: make(map[string]*models.Entitlement),
	}
}

func (f *fakeStore) seedWallet(userID uint, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.wallets[userID] = &models.Wallet{
		ID:             f.nextID,
		UserID:         userID,
		CurrentBalance: balance,
		UpdatedAt:      time.Now().UTC(),
	}
}

func (f *fakeStore) walletSnapshot(userID uint) models.Wallet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.wallets[userID]
}

func (f *fakeStore) transactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transactions)
}

func entitlementKey(userID uint, referenceID string) string {
	return fmt.Sprintf("%d/%s", userID, referenceID)
}

func (f *fakeStore) CreateWallet(wallet *models.Wallet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.wallets[wallet.UserID]; ok {
		return repositories.ErrDuplicateWallet
	}
	f.nextID++
	stored := *wallet
	stored.ID = f.nextID
	stored.CurrentBalance = 0
	f.wallets[wallet.UserID] = &stored
	wallet.ID = stored.ID
	return nil
}

func (f *fakeStore) GetWalletByUserID(userID uint) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, ok := f.wallets[userID]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	copied := *wallet
	return &copied, nil
}

func (f *fakeStore) ListWalletUserIDs() ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint, 0, len(f.wallets))
	for id := range f.wallets {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) ApplyBalanceChange(userID uint, balanceBefore, balanceAfter, earnedDelta, spentDelta int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casDenials > 0 {
		f.casDenials--
		return false, nil
	}
	wallet, ok := f.wallets[userID]
	if !ok || wallet.CurrentBalance != balanceBefore {
		return false, nil
	}
	wallet.CurrentBalance = balanceAfter
	wallet.TotalEarnedThisCycle += earnedDelta
	wallet.TotalSpentThisCycle += spentDelta
	wallet.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *fakeStore) CreateTransaction(tx *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateTransaction != nil {
		return f.failCreateTransaction
	}
	f.nextID++
	stored := *tx
	stored.ID = f.nextID
	stored.CreatedAt = time.Now().UTC()
	f.transactions = append(f.transactions, &stored)
	tx.ID = stored.ID
	return nil
}

func (f *fakeStore) GetTransactionByTransactionID(transactionID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.transactions {
		if tx.TransactionID == transactionID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *fakeStore) GetLatestTransaction(userID uint) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.transactions) - 1; i >= 0; i-- {
		if f.transactions[i].UserID == userID {
			copied := *f.transactions[i]
			return &copied, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *fakeStore) GetTransactionHistory(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var history []models.Transaction
	for i := len(f.transactions) - 1; i >= 0; i-- {
		if f.transactions[i].UserID == userID {
			history = append(history, *f.transactions[i])
		}
	}
	if offset >= len(history) {
		return nil, nil
	}
	history = history[offset:]
	if limit > 0 && limit < len(history) {
		history = history[:limit]
	}
	return history, nil
}

func (f *fakeStore) SumTransactionAmounts(userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, tx := range f.transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (f *fakeStore) GetActivityStats(ctx context.Context, start, end time.Time) (*repositories.ActivityStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repositories.ActivityStats{}
	var spends int64
	for _, tx := range f.transactions {
		if tx.CreatedAt.Before(start) || tx.CreatedAt.After(end) {
			continue
		}
		stats.TransactionCount++
		if tx.Amount < 0 {
			stats.SpendTotal += -tx.Amount
			spends++
		}
		created := tx.CreatedAt
		if stats.LastTransactionAt == nil || created.After(*stats.LastTransactionAt) {
			stats.LastTransactionAt = &created
		}
	}
	if spends > 0 {
		stats.AvgSpend = float64(stats.SpendTotal) / float64(spends)
	}
	return stats, nil
}

func (f *fakeStore) UpsertEntitlement(entitlement *models.Entitlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsertEntitlement != nil {
		return f.failUpsertEntitlement
	}
	key := entitlementKey(entitlement.UserID, entitlement.ReferenceID)
	if existing, ok := f.entitlements[key]; ok {
		existing.ExpiresAt = entitlement.ExpiresAt
		entitlement.ID = existing.ID
		return nil
	}
	f.nextID++
	stored := *entitlement
	stored.ID = f.nextID
	f.entitlements[key] = &stored
	entitlement.ID = stored.ID
	return nil
}

func (f *fakeStore) GetEntitlement(userID uint, referenceID string) (*models.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entitlement, ok := f.entitlements[entitlementKey(userID, referenceID)]
	if !ok {
		return nil, repositories.ErrEntitlementNotFound
	}
	copied := *entitlement
	return &copied, nil
}

// ExecuteInTransaction serializes write sets and restores the full
// snapshot when fn fails, mirroring a database rollback.
func (f *fakeStore) ExecuteInTransaction(fn func(repositories.WalletRepository) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	snapshot := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(snapshot)
		return err
	}
	if f.afterCommit != nil {
		f.afterCommit(f)
	}
	return nil
}

type storeSnapshot struct {
	wallets      map[uint]models.Wallet
	transactions []models.Transaction
	entitlements map[string]models.Entitlement
	nextID       uint
}

func (f *fakeStore) snapshot() storeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := storeSnapshot{
		wallets:      make(map[uint]models.Wallet, len(f.wallets)),
		entitlements: make(map[string]models.Entitlement, len(f.entitlements)),
		nextID:       f.nextID,
	}
	for id, w := range f.wallets {
		snap.wallets[id] = *w
	}
	for _, tx := range f.transactions {
		snap.transactions = append(snap.transactions, *tx)
	}
	for key, e := range f.entitlements {
		snap.entitlements[key] = *e
	}
	return snap
}

func (f *fakeStore) restore(snap storeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallets = make(map[uint]*models.Wallet, len(snap.wallets))
	for id, w := range snap.wallets {
		copied := w
		f.wallets[id] = &copied
	}
	f.transactions = nil
	for _, tx := range snap.transactions {
		copied := tx
		f.transactions = append(f.transactions, &copied)
	}
	f.entitlements = make(map[string]*models.Entitlement, len(snap.entitlements))
	for key, e := range snap.entitlements {
		copied := e
		f.entitlements[key] = &copied
	}
	f.nextID = snap.nextID
}

type fakeIntents struct {
	mu      sync.Mutex
	intents []models.TransactionIntent
	failErr error
}

func (f *fakeIntents) Create(intent *models.TransactionIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.intents = append(f.intents, *intent)
	return nil
}

func (f *fakeIntents) GetOrphanedByUserID(userID uint) ([]models.TransactionIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orphans []models.TransactionIntent
	for _, intent := range f.intents {
		if intent.UserID == userID {
			orphans = append(orphans, intent)
		}
	}
	return orphans, nil
}

func (f *fakeIntents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.intents)
}

type fakeEscalations struct {
	mu   sync.Mutex
	recs []models.Inconsistency
}

func (f *fakeEscalations) Create(rec *models.Inconsistency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = uint(len(f.recs) + 1)
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakeEscalations) GetByID(id uint) (*models.Inconsistency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recs {
		if rec.ID == id {
			copied := rec
			return &copied, nil
		}
	}
	return nil, repositories.ErrInconsistencyNotFound
}

func (f *fakeEscalations) ListUnresolved() ([]models.Inconsistency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var open []models.Inconsistency
	for _, rec := range f.recs {
		if rec.ResolvedAt == nil {
			open = append(open, rec)
		}
	}
	return open, nil
}

func (f *fakeEscalations) MarkResolved(id uint, resolution, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recs {
		if f.recs[i].ID == id && f.recs[i].ResolvedAt == nil {
			now := time.Now().UTC()
			f.recs[i].ResolvedAt = &now
			f.recs[i].Resolution = resolution
			f.recs[i].ResolutionTxID = transactionID
			return nil
		}
	}
	return repositories.ErrInconsistencyNotFound
}

type fakeCache struct {
	mu            sync.Mutex
	wallets       map[uint]*models.Wallet
	sets          int
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{wallets: make(map[uint]*models.Wallet)}
}

func (f *fakeCache) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, ok := f.wallets[userID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	copied := *wallet
	return &copied, nil
}

func (f *fakeCache) SetWallet(ctx context.Context, wallet *models.Wallet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *wallet
	f.wallets[wallet.UserID] = &copied
	f.sets++
	return nil
}

func (f *fakeCache) InvalidateWallet(ctx context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.wallets, userID)
	f.invalidations++
	return nil
}
