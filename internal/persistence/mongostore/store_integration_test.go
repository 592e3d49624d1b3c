//go:build integration

package mongostore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mongocontainer "github.com/testcontainers/testcontainers-go/modules/mongodb"

	"example.com/gym/internal/domain"
)

func TestStoreNullsReferencesOnMemberDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ctx)

	adminID := uuid.NewString()
	alice := domain.Member{ID: uuid.NewString(), AdminID: adminID, Name: "Alice", JoinedAt: time.Now().UTC()}
	bob := domain.Member{ID: uuid.NewString(), AdminID: adminID, Name: "Bob", JoinedAt: time.Now().UTC()}
	require.NoError(t, store.SaveMember(ctx, alice))
	require.NoError(t, store.SaveMember(ctx, bob))

	day := time.Date(2025, time.December, 3, 7, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, domain.AttendanceRecord{ID: "r-1", AdminID: adminID, MemberID: alice.ID, Date: day}))
	require.ErrorIs(t, store.Create(ctx, domain.AttendanceRecord{ID: "r-1", AdminID: adminID, MemberID: alice.ID, Date: day}), domain.ErrConflict)
	require.NoError(t, store.Create(ctx, domain.AttendanceRecord{ID: "r-2", AdminID: adminID, MemberID: bob.ID, Date: day.Add(time.Hour)}))
	require.NoError(t, store.Create(ctx, domain.AttendanceRecord{ID: "r-3", AdminID: uuid.NewString(), MemberID: alice.ID, Date: day}))
	require.NoError(t, store.DeleteMember(ctx, adminID, bob.ID))

	period, err := domain.ParsePeriod("2025-12", time.UTC)
	require.NoError(t, err)
	records, err := store.ListByPeriod(ctx, adminID, period.Start, period.End)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, alice.ID, records[0].MemberID)
	require.Empty(t, records[1].MemberID)

	members, err := store.FindByIDs(ctx, adminID, []string{alice.ID, bob.ID})
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Contains(t, members, alice.ID)

	roster, err := store.List(ctx, adminID)
	require.NoError(t, err)
	require.Len(t, roster, 1)

	orphan, err := store.FindRecord(ctx, adminID, "r-2")
	require.NoError(t, err)
	require.NotNil(t, orphan)
	require.Empty(t, orphan.MemberID)

	hidden, err := store.FindRecord(ctx, adminID, "r-3")
	require.NoError(t, err)
	require.Nil(t, hidden)
}

func TestStoreSettingsLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ctx)

	adminID := uuid.NewString()
	defaults := domain.DefaultSettings(adminID, time.Now().UTC().Truncate(time.Millisecond))

	missing, err := store.Get(ctx, adminID)
	require.NoError(t, err)
	require.Nil(t, missing)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := store.GetOrCreate(ctx, adminID, defaults)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrConflict)
				return
			}
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, creates)

	count, err := store.settings.CountDocuments(ctx, map[string]any{"adminId": adminID})
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	name := "Iron Works"
	updated, err := store.Upsert(ctx, adminID, domain.SettingsPatch{GymName: &name, WorkingDays: []string{}}, defaults)
	require.NoError(t, err)
	require.Equal(t, adminID, updated.AdminID)
	require.Equal(t, "Iron Works", updated.GymName)
	require.Empty(t, updated.WorkingDays)
	require.Equal(t, defaults.MembershipPlans, updated.MembershipPlans)
	require.True(t, updated.CreatedAt.Equal(defaults.CreatedAt))
}

func TestStoreUpsertInsertsWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ctx)

	adminID := uuid.NewString()
	defaults := domain.DefaultSettings(adminID, time.Now().UTC())
	threshold := 4

	out, err := store.Upsert(ctx, adminID, domain.SettingsPatch{LowAttendanceAlertThreshold: &threshold}, defaults)
	require.NoError(t, err)
	require.Equal(t, 4, out.LowAttendanceAlertThreshold)
	require.Equal(t, defaults.Currency, out.Currency)
	require.Equal(t, defaults.OpeningTime, out.OpeningTime)
}

func newTestStore(t *testing.T, ctx context.Context) *Store {
	t.Helper()

	container, err := mongocontainer.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	store := NewStore(client.Database("gym_test"))
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}
