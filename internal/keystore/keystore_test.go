package keystore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/talhajamadar1013-star/Qmail/internal/db"
	"github.com/talhajamadar1013-star/Qmail/internal/db/models"
	"github.com/talhajamadar1013-star/Qmail/internal/keywrap"
	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A second pool connection would open its own empty in-memory database.
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.RunMigrations(database))

	cipher, err := keywrap.New("test_secret")
	require.NoError(t, err)

	return New(database, cipher, zap.NewNop()), database
}

func insertKey(t *testing.T, store *Store, keyID, holder string, material []byte, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), NewKey{
		KeyID:     keyID,
		Holder:    holder,
		KeyBytes:  material,
		KeyLength: len(material) * 8,
		Protocol:  "BB84",
		ExpiresAt: expiresAt,
	}))
}

func TestInsertAndGetCopy(t *testing.T) {
	store, database := newTestStore(t)
	material := []byte("0123456789abcdef0123456789abcdef")
	insertKey(t, store, "k1", "alice@example.com", material, time.Now().Add(time.Hour))

	kc, err := store.GetCopy(context.Background(), "k1", "alice@example.com", time.Now())
	require.NoError(t, err)
	assert.Equal(t, material, kc.KeyBytes)
	assert.Equal(t, models.StatusUnused, kc.Status)
	assert.Equal(t, 256, kc.KeyLength)
	assert.Equal(t, "alice@example.com", kc.CreatedFor)

	// The row itself must never hold plaintext.
	var row models.QuantumKey
	require.NoError(t, database.Where("key_id = ?", "k1").First(&row).Error)
	assert.NotEqual(t, material, row.KeyBytes)
	assert.NotContains(t, string(row.KeyBytes), "0123456789abcdef")
}

func TestInsertDuplicateCopyConflicts(t *testing.T) {
	store, _ := newTestStore(t)
	material := make([]byte, 32)
	insertKey(t, store, "k1", "alice@example.com", material, time.Now().Add(time.Hour))

	err := store.Insert(context.Background(), NewKey{
		KeyID:     "k1",
		Holder:    "alice@example.com",
		KeyBytes:  material,
		KeyLength: 256,
		Protocol:  "BB84",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindConflict))
}

func TestGetCopyIsHolderScoped(t *testing.T) {
	store, _ := newTestStore(t)
	insertKey(t, store, "k1", "alice@example.com", make([]byte, 32), time.Now().Add(time.Hour))

	_, err := store.GetCopy(context.Background(), "k1", "bob@example.com", time.Now())
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindNotFound))
}

func TestGetCopyLazilyExpires(t *testing.T) {
	store, database := newTestStore(t)
	insertKey(t, store, "k1", "alice@example.com", make([]byte, 32), time.Now().Add(-time.Minute))

	_, err := store.GetCopy(context.Background(), "k1", "alice@example.com", time.Now())
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindExpired))

	// The read also persisted the transition.
	var row models.QuantumKey
	require.NoError(t, database.Where("key_id = ?", "k1").First(&row).Error)
	assert.Equal(t, models.StatusExpired, row.Status)
}

func TestCompareAndSetConsumesExactlyOnce(t *testing.T) {
	store, _ := newTestStore(t)
	insertKey(t, store, "k1", "alice@example.com", make([]byte, 32), time.Now().Add(time.Hour))

	const workers = 20
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CompareAndSetStatus(context.Background(),
				"k1", "alice@example.com",
				models.StatusUnused, models.StatusUsed,
				"alice@example.com", time.Now())
		}(i)
	}
	wg.Wait()

	wins, gone := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case keyerrors.IsKind(err, keyerrors.KindGone):
			gone++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, gone)
}

func TestCompareAndSetStampsConsumer(t *testing.T) {
	store, database := newTestStore(t)
	insertKey(t, store, "k1", "alice@example.com", make([]byte, 32), time.Now().Add(time.Hour))

	now := time.Now()
	require.NoError(t, store.CompareAndSetStatus(context.Background(),
		"k1", "alice@example.com", models.StatusUnused, models.StatusUsed,
		"alice@example.com", now))

	var row models.QuantumKey
	require.NoError(t, database.Where("key_id = ?", "k1").First(&row).Error)
	assert.Equal(t, models.StatusUsed, row.Status)
	assert.Equal(t, "alice@example.com", row.UsedBy)
	require.NotNil(t, row.UsedAt)
	assert.WithinDuration(t, now, *row.UsedAt, time.Second)
}

func TestCompareAndSetRefusesExpiredWindow(t *testing.T) {
	store, database := newTestStore(t)
	insertKey(t, store, "k1", "alice@example.com", make([]byte, 32), time.Now().Add(-time.Minute))

	err := store.CompareAndSetStatus(context.Background(),
		"k1", "alice@example.com", models.StatusUnused, models.StatusUsed,
		"alice@example.com", time.Now())
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindExpired))

	var row models.QuantumKey
	require.NoError(t, database.Where("key_id = ?", "k1").First(&row).Error)
	assert.NotEqual(t, models.StatusUsed, row.Status)
}

func TestCompareAndSetUnknownKey(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.CompareAndSetStatus(context.Background(),
		"missing", "alice@example.com", models.StatusUnused, models.StatusUsed,
		"alice@example.com", time.Now())
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindNotFound))
}

func TestCreateSiblingCopiesMaterial(t *testing.T) {
	store, _ := newTestStore(t)
	material := []byte("fedcba9876543210fedcba9876543210")
	insertKey(t, store, "k1", "alice@example.com", material, time.Now().Add(time.Hour))

	created, err := store.CreateSibling(context.Background(), "k1", "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	assert.True(t, created)

	bobCopy, err := store.GetCopy(context.Background(), "k1", "bob@example.com", time.Now())
	require.NoError(t, err)
	assert.Equal(t, material, bobCopy.KeyBytes)
	assert.Equal(t, models.StatusUnused, bobCopy.Status)
	assert.Equal(t, "alice@example.com", bobCopy.SharedBy)
	assert.Equal(t, "bob@example.com", bobCopy.CreatedFor)
}

func TestCreateSiblingIsIdempotent(t *testing.T) {
	store, database := newTestStore(t)
	insertKey(t, store, "k1", "alice@example.com", make([]byte, 32), time.Now().Add(time.Hour))

	created, err := store.CreateSibling(context.Background(), "k1", "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateSibling(context.Background(), "k1", "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, database.Model(&models.QuantumKey{}).Where("key_id = ?", "k1").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCreateSiblingUnknownSource(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.CreateSibling(context.Background(), "missing", "alice@example.com", "bob@example.com")
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindNotFound))
}

func TestSiblingLifecyclesAreIndependent(t *testing.T) {
	store, _ := newTestStore(t)
	insertKey(t, store, "k1", "alice@example.com", make([]byte, 32), time.Now().Add(time.Hour))

	_, err := store.CreateSibling(context.Background(), "k1", "alice@example.com", "bob@example.com")
	require.NoError(t, err)

	require.NoError(t, store.CompareAndSetStatus(context.Background(),
		"k1", "alice@example.com", models.StatusUnused, models.StatusUsed,
		"alice@example.com", time.Now()))

	bobCopy, err := store.GetCopy(context.Background(), "k1", "bob@example.com", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnused, bobCopy.Status)
}

func TestSweepExpired(t *testing.T) {
	store, database := newTestStore(t)
	now := time.Now()
	insertKey(t, store, "old1", "alice@example.com", make([]byte, 32), now.Add(-time.Hour))
	insertKey(t, store, "old2", "bob@example.com", make([]byte, 32), now.Add(-time.Minute))
	insertKey(t, store, "fresh", "alice@example.com", make([]byte, 32), now.Add(time.Hour))
	insertKey(t, store, "spent", "alice@example.com", make([]byte, 32), now.Add(-time.Hour))
	require.NoError(t, database.Model(&models.QuantumKey{}).
		Where("key_id = ?", "spent").
		Update("status", models.StatusUsed).Error)

	swept, err := store.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, swept)

	var statuses []models.QuantumKey
	require.NoError(t, database.Order("key_id").Find(&statuses).Error)
	byID := map[string]models.KeyStatus{}
	for _, row := range statuses {
		byID[row.KeyID] = row.Status
	}
	assert.Equal(t, models.StatusExpired, byID["old1"])
	assert.Equal(t, models.StatusExpired, byID["old2"])
	assert.Equal(t, models.StatusUnused, byID["fresh"])
	assert.Equal(t, models.StatusUsed, byID["spent"])
}

func TestListByHolder(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Now()
	insertKey(t, store, "fresh", "alice@example.com", make([]byte, 32), now.Add(time.Hour))
	insertKey(t, store, "stale", "alice@example.com", make([]byte, 32), now.Add(-time.Hour))
	insertKey(t, store, "other", "bob@example.com", make([]byte, 32), now.Add(time.Hour))

	all, err := store.ListByHolder(context.Background(), "alice@example.com", "", 50, now)
	require.NoError(t, err)
	require.Len(t, all, 2)

	unused, err := store.ListByHolder(context.Background(), "alice@example.com", models.StatusUnused, 50, now)
	require.NoError(t, err)
	require.Len(t, unused, 1)
	assert.Equal(t, "fresh", unused[0].KeyID)

	// A copy past its window lists as expired even before the sweep ran.
	expired, err := store.ListByHolder(context.Background(), "alice@example.com", models.StatusExpired, 50, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "stale", expired[0].KeyID)
	assert.Equal(t, models.StatusExpired, expired[0].Status)
}

func TestListByHolderLimit(t *testing.T) {
	store, _ := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		insertKey(t, store, id, "alice@example.com", make([]byte, 32), time.Now().Add(time.Hour))
	}

	keys, err := store.ListByHolder(context.Background(), "alice@example.com", "", 2, time.Now())
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestMarkAnchoredTouchesAllCopies(t *testing.T) {
	store, database := newTestStore(t)
	insertKey(t, store, "k1", "alice@example.com", make([]byte, 32), time.Now().Add(time.Hour))
	_, err := store.CreateSibling(context.Background(), "k1", "alice@example.com", "bob@example.com")
	require.NoError(t, err)

	require.NoError(t, store.MarkAnchored(context.Background(), "k1", "0xabc123", "polygon_amoy"))

	var rows []models.QuantumKey
	require.NoError(t, database.Where("key_id = ?", "k1").Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.HashStored)
		assert.Equal(t, "0xabc123", row.LedgerTxRef)
		assert.Equal(t, "polygon_amoy", row.LedgerNetwork)
	}
}

func TestMarkAnchoredUnknownKey(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.MarkAnchored(context.Background(), "missing", "0xabc", "polygon_amoy")
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindNotFound))
}

func TestStatsByHolder(t *testing.T) {
	store, database := newTestStore(t)
	now := time.Now()
	insertKey(t, store, "u1", "alice@example.com", make([]byte, 32), now.Add(time.Hour))
	insertKey(t, store, "u2", "alice@example.com", make([]byte, 32), now.Add(time.Hour))
	insertKey(t, store, "spent", "alice@example.com", make([]byte, 32), now.Add(time.Hour))
	insertKey(t, store, "stale", "alice@example.com", make([]byte, 32), now.Add(-time.Hour))
	require.NoError(t, database.Model(&models.QuantumKey{}).
		Where("key_id = ?", "spent").
		Update("status", models.StatusUsed).Error)

	stats, err := store.StatsByHolder(context.Background(), "alice@example.com", now)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Total)
	assert.EqualValues(t, 2, stats.Unused)
	assert.EqualValues(t, 1, stats.Used)
	assert.EqualValues(t, 1, stats.Expired)
}

func TestGetAnyCopy(t *testing.T) {
	store, _ := newTestStore(t)
	material := []byte("0123456789abcdef0123456789abcdef")
	insertKey(t, store, "k1", "alice@example.com", material, time.Now().Add(time.Hour))
	_, err := store.CreateSibling(context.Background(), "k1", "alice@example.com", "bob@example.com")
	require.NoError(t, err)

	kc, err := store.GetAnyCopy(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, material, kc.KeyBytes)

	_, err = store.GetAnyCopy(context.Background(), "missing")
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindNotFound))
}
