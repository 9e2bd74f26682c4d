package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"crm-backoffice/bridge"
	"crm-backoffice/cache"
	"crm-backoffice/models"
	"crm-backoffice/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func strPtr(s string) *string { return &s }

type fakeWallets struct {
	wallets []bridge.Wallet
	err     error
}

func (f *fakeWallets) ListWallets(context.Context) ([]bridge.Wallet, error) { return f.wallets, f.err }

func (f *fakeWallets) CreateWallet(context.Context, string, string) (*bridge.Wallet, error) {
	return nil, errors.New("not used")
}

type fakeCustomers struct {
	status map[string]string
}

func (f *fakeCustomers) CreateCustomer(context.Context, bridge.CreateCustomerRequest) (*bridge.Customer, error) {
	return nil, errors.New("not used")
}

func (f *fakeCustomers) GetCustomer(_ context.Context, id string) (*bridge.Customer, error) {
	s, ok := f.status[id]
	if !ok {
		return nil, &bridge.ProviderError{Operation: "get_customer", StatusCode: 404}
	}
	return &bridge.Customer{ID: id, Status: s}, nil
}

func TestWalletDiscovery_InsertsUnseenWallets(t *testing.T) {
	db := newTestDB(t)
	owner := &models.Profile{Email: "ada@example.com", Role: models.RoleUser, BridgeCustomerID: strPtr("cus_1")}
	require.NoError(t, db.Create(owner).Error)
	existing := &models.Wallet{ProfileID: owner.ID, ExternalID: "wal_known", Chain: models.ChainBase, Address: "0xold", IsActive: true}
	require.NoError(t, db.Create(existing).Error)

	provider := &fakeWallets{wallets: []bridge.Wallet{
		{ID: "wal_known", Chain: "base", Address: "0xchanged", CustomerID: "cus_1"},
		{ID: "wal_new", Chain: "solana", Address: "So1", CustomerID: "cus_1", Tags: []string{"liquidation_address"}, CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "wal_stranger", Chain: "base", Address: "0x2", CustomerID: "cus_unknown"},
	}}

	stats, err := NewWalletDiscoveryWorker(db, provider).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DiscoveryStats{Seen: 3, Inserted: 1, Orphaned: 1}, stats)

	var found models.Wallet
	require.NoError(t, db.Where("external_id = ?", "wal_new").First(&found).Error)
	assert.Equal(t, owner.ID, found.ProfileID)
	assert.Equal(t, models.WalletTagLiquidation, found.Tag)
	assert.True(t, found.IsActive)
	require.NotNil(t, found.ProviderCreatedAt)

	var known models.Wallet
	require.NoError(t, db.Where("external_id = ?", "wal_known").First(&known).Error)
	assert.Equal(t, "0xold", known.Address, "existing rows are not rewritten")

	stats, err = NewWalletDiscoveryWorker(db, provider).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Inserted)
}

func TestWalletDiscovery_ProviderError(t *testing.T) {
	db := newTestDB(t)
	_, err := NewWalletDiscoveryWorker(db, &fakeWallets{err: errors.New("boom")}).RunOnce(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestKYCSync_RefreshesPendingOnly(t *testing.T) {
	db := newTestDB(t)
	pending := &models.Profile{Email: "a@example.com", Role: models.RoleUser, BridgeCustomerID: strPtr("cus_a"), KYCStatus: models.KYCStatusUnderReview}
	done := &models.Profile{Email: "b@example.com", Role: models.RoleUser, BridgeCustomerID: strPtr("cus_b"), KYCStatus: models.KYCStatusApproved}
	broken := &models.Profile{Email: "c@example.com", Role: models.RoleUser, BridgeCustomerID: strPtr("cus_gone"), KYCStatus: models.KYCStatusIncomplete}
	noCustomer := &models.Profile{Email: "d@example.com", Role: models.RoleUser, KYCStatus: models.KYCStatusNotStarted}
	for _, p := range []*models.Profile{pending, done, broken, noCustomer} {
		require.NoError(t, db.Create(p).Error)
	}

	customers := &fakeCustomers{status: map[string]string{"cus_a": "active", "cus_b": "rejected"}}
	profiles := services.NewProfileService(db, cache.NewMemoryCache(time.Minute), customers)

	refreshed, failed, err := NewKYCSyncWorker(db, profiles).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
	assert.Equal(t, 1, failed)

	var got models.Profile
	require.NoError(t, db.First(&got, "id = ?", pending.ID).Error)
	assert.Equal(t, models.KYCStatusApproved, got.KYCStatus)
	assert.NotNil(t, got.KYCSyncedAt)

	var final models.Profile
	require.NoError(t, db.First(&final, "id = ?", done.ID).Error)
	assert.Equal(t, models.KYCStatusApproved, final.KYCStatus, "final statuses are not re-read")
	assert.Nil(t, final.KYCSyncedAt)
}

func TestScheduler_RegistersEnabledJobsOnly(t *testing.T) {
	db := newTestDB(t)
	discovery := NewWalletDiscoveryWorker(db, &fakeWallets{})
	mem := cache.NewMemoryCache(time.Minute)

	s, err := NewScheduler(SchedulerConfig{
		WalletDiscoveryInterval: time.Hour,
		CachePurgeInterval:      time.Minute,
	}, discovery, nil, mem)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs())

	s.Start()
	require.NoError(t, s.Shutdown())

	none, err := NewScheduler(SchedulerConfig{}, discovery, nil, mem)
	require.NoError(t, err)
	assert.Zero(t, none.Jobs())
	none.Start()
	require.NoError(t, none.Shutdown())
}

func TestKYCSync_NeverSyncedProfilesGoFirst(t *testing.T) {
	db := newTestDB(t)
	longAgo := time.Now().Add(-48 * time.Hour).UTC()
	synced := &models.Profile{Email: "old@example.com", Role: models.RoleUser, BridgeCustomerID: strPtr("cus_old"), KYCStatus: models.KYCStatusUnderReview, KYCSyncedAt: &longAgo}
	fresh := &models.Profile{Email: "new@example.com", Role: models.RoleUser, BridgeCustomerID: strPtr("cus_new"), KYCStatus: models.KYCStatusNotStarted}
	require.NoError(t, db.Create(synced).Error)
	require.NoError(t, db.Create(fresh).Error)

	customers := &fakeCustomers{status: map[string]string{"cus_old": "active", "cus_new": "active"}}
	worker := NewKYCSyncWorker(db, services.NewProfileService(db, cache.NewMemoryCache(time.Minute), customers))
	worker.batchSize = 1

	refreshed, _, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	var got models.Profile
	require.NoError(t, db.First(&got, "id = ?", fresh.ID).Error)
	assert.Equal(t, models.KYCStatusApproved, got.KYCStatus, "never-synced profile is refreshed before older ones")
}
