package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/gym/internal/domain"
	"example.com/gym/internal/events"
	"example.com/gym/internal/persistence/memory"
)

func newAttendanceFixture(t *testing.T) (*memory.Store, *domain.AttendanceService, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	settings := domain.NewSettingsService(store)
	svc := domain.NewAttendanceService(store, store, settings,
		domain.WithPublisher(pub),
		domain.WithClock(func() time.Time { return time.Date(2025, 12, 20, 12, 0, 0, 0, time.UTC) }),
	)
	return store, svc, pub
}

func checkIn(t *testing.T, store *memory.Store, id, adminID, memberID string, at time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), domain.AttendanceRecord{ID: id, AdminID: adminID, MemberID: memberID, Date: at}))
}

func TestOverviewBuildsDayMapAndReportsOrphans(t *testing.T) {
	store, svc, pub := newAttendanceFixture(t)
	store.AddMember(domain.Member{ID: "m-1", AdminID: "admin-a", Name: "Alice"})
	store.AddMember(domain.Member{ID: "m-2", AdminID: "admin-a", Name: "Bob"})
	store.AddMember(domain.Member{ID: "m-3", AdminID: "admin-a", Name: "Idle"})

	checkIn(t, store, "r-1", "admin-a", "m-1", time.Date(2025, 12, 3, 7, 0, 0, 0, time.UTC))
	checkIn(t, store, "r-2", "admin-a", "m-1", time.Date(2025, 12, 17, 7, 0, 0, 0, time.UTC))
	checkIn(t, store, "r-3", "admin-a", "m-2", time.Date(2025, 12, 5, 7, 0, 0, 0, time.UTC))
	checkIn(t, store, "r-4", "admin-a", "m-2", time.Date(2025, 12, 6, 7, 0, 0, 0, time.UTC))
	checkIn(t, store, "r-5", "admin-a", "m-1", time.Date(2025, 11, 30, 23, 0, 0, 0, time.UTC))
	require.NoError(t, store.DeleteMember(context.Background(), "admin-a", "m-2"))

	overview, err := svc.Overview(context.Background(), "admin-a", "2025-12")
	require.NoError(t, err)

	require.Len(t, overview.Entries, 1)
	assert.Equal(t, map[int]int{3: 1, 17: 1}, overview.Entries["m-1"].Days)
	assert.NotContains(t, overview.Entries, "m-3")

	require.Len(t, overview.Orphaned, 2)
	assert.Equal(t, "r-3", overview.Orphaned[0].RecordID)
	assert.Equal(t, "r-4", overview.Orphaned[1].RecordID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrphansDetected, pub.events[0].eventType)
	assert.Equal(t, "admin-a:2025-12", pub.events[0].key)
	assert.Len(t, pub.events[0].payload.(events.OrphansDetected).Records, 2)
}

func TestOverviewIsolatesAdmins(t *testing.T) {
	store, svc, _ := newAttendanceFixture(t)
	store.AddMember(domain.Member{ID: "m-1", AdminID: "admin-a", Name: "Alice"})
	store.AddMember(domain.Member{ID: "m-9", AdminID: "admin-b", Name: "Mallory"})

	checkIn(t, store, "r-1", "admin-a", "m-1", time.Date(2025, 12, 3, 7, 0, 0, 0, time.UTC))
	checkIn(t, store, "r-2", "admin-b", "m-9", time.Date(2025, 12, 3, 7, 0, 0, 0, time.UTC))
	// A record of admin A pointing at admin B's member must not leak Mallory.
	checkIn(t, store, "r-3", "admin-a", "m-9", time.Date(2025, 12, 4, 7, 0, 0, 0, time.UTC))

	overview, err := svc.Overview(context.Background(), "admin-a", "2025-12")
	require.NoError(t, err)

	require.Len(t, overview.Entries, 1)
	assert.Contains(t, overview.Entries, "m-1")
	require.Len(t, overview.Orphaned, 1)
	assert.Equal(t, "r-3", overview.Orphaned[0].RecordID)
}

func TestOverviewFiltersRecordsLeakedByStore(t *testing.T) {
	leaky := &leakyAttendanceRepo{records: []domain.AttendanceRecord{
		{ID: "r-1", AdminID: "admin-b", MemberID: "m-9", Date: time.Date(2025, 12, 3, 7, 0, 0, 0, time.UTC)},
	}}
	store := memory.NewStore()
	store.AddMember(domain.Member{ID: "m-9", AdminID: "admin-b", Name: "Mallory"})
	svc := domain.NewAttendanceService(leaky, store, domain.NewSettingsService(store))

	overview, err := svc.Overview(context.Background(), "admin-a", "2025-12")
	require.NoError(t, err)

	assert.Empty(t, overview.Entries)
	assert.Empty(t, overview.Orphaned)
}

func TestOverviewRejectsMalformedMonth(t *testing.T) {
	_, svc, _ := newAttendanceFixture(t)

	_, err := svc.Overview(context.Background(), "admin-a", "2025-13")

	require.ErrorIs(t, err, domain.ErrInvalidYearMonth)
}

func TestOverviewSurfacesPersistenceFailure(t *testing.T) {
	store := memory.NewStore()
	svc := domain.NewAttendanceService(&leakyAttendanceRepo{err: errors.New("timeout")}, store, domain.NewSettingsService(store))

	_, err := svc.Overview(context.Background(), "admin-a", "2025-12")

	require.ErrorIs(t, err, domain.ErrAttendanceFetch)
}

func TestRecordCheckIn(t *testing.T) {
	store, svc, _ := newAttendanceFixture(t)
	store.AddMember(domain.Member{ID: "m-1", AdminID: "admin-a", Name: "Alice"})
	ctx := context.Background()

	rec, err := svc.RecordCheckIn(ctx, domain.CheckInInput{AdminID: "admin-a", MemberID: "m-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, time.Date(2025, 12, 20, 12, 0, 0, 0, time.UTC), rec.Date)

	_, err = svc.RecordCheckIn(ctx, domain.CheckInInput{AdminID: "admin-b", MemberID: "m-1"})
	require.ErrorIs(t, err, domain.ErrMemberNotFound)

	_, err = svc.RecordCheckIn(ctx, domain.CheckInInput{AdminID: "admin-a"})
	require.ErrorIs(t, err, domain.ErrInvalidCheckIn)

	at := time.Date(2025, 12, 21, 6, 0, 0, 0, time.UTC)
	first, err := svc.RecordCheckIn(ctx, domain.CheckInInput{AdminID: "admin-a", MemberID: "m-1", RecordID: "fixed", CheckedInAt: at})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckInRecordID("admin-a", "fixed"), first.ID)
	replay, err := svc.RecordCheckIn(ctx, domain.CheckInInput{AdminID: "admin-a", MemberID: "m-1", RecordID: "fixed", CheckedInAt: at.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, *first, *replay)

	records, err := store.ListByPeriod(ctx, "admin-a", at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordCheckInScopesKeysPerAdmin(t *testing.T) {
	store, svc, _ := newAttendanceFixture(t)
	store.AddMember(domain.Member{ID: "m-1", AdminID: "admin-a", Name: "Alice"})
	store.AddMember(domain.Member{ID: "m-2", AdminID: "admin-a", Name: "Bob"})
	store.AddMember(domain.Member{ID: "m-9", AdminID: "admin-b", Name: "Mallory"})
	ctx := context.Background()

	a, err := svc.RecordCheckIn(ctx, domain.CheckInInput{AdminID: "admin-a", MemberID: "m-1", RecordID: "k-1"})
	require.NoError(t, err)
	b, err := svc.RecordCheckIn(ctx, domain.CheckInInput{AdminID: "admin-b", MemberID: "m-9", RecordID: "k-1"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = svc.RecordCheckIn(ctx, domain.CheckInInput{AdminID: "admin-a", MemberID: "m-2", RecordID: "k-1"})
	require.ErrorIs(t, err, domain.ErrCheckInConflict)

	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	for admin, member := range map[string]string{"admin-a": "m-1", "admin-b": "m-9"} {
		records, err := store.ListByPeriod(ctx, admin, from, to)
		require.NoError(t, err)
		require.Len(t, records, 1, admin)
		assert.Equal(t, member, records[0].MemberID)
	}
}

func TestLowAttendanceIncludesZeroVisitMembers(t *testing.T) {
	store, svc, _ := newAttendanceFixture(t)
	ctx := context.Background()
	joined := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.AddMember(domain.Member{ID: "m-1", AdminID: "admin-a", Name: "Alice", JoinedAt: joined})
	store.AddMember(domain.Member{ID: "m-2", AdminID: "admin-a", Name: "Bob", JoinedAt: joined})
	store.AddMember(domain.Member{ID: "m-3", AdminID: "admin-a", Name: "Late", JoinedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)})

	threshold := 2
	_, err := domain.NewSettingsService(store).ApplyUpdate(ctx, "admin-a", domain.SettingsPatch{LowAttendanceAlertThreshold: &threshold})
	require.NoError(t, err)

	checkIn(t, store, "r-1", "admin-a", "m-1", time.Date(2025, 12, 1, 7, 0, 0, 0, time.UTC))
	checkIn(t, store, "r-2", "admin-a", "m-1", time.Date(2025, 12, 2, 7, 0, 0, 0, time.UTC))
	checkIn(t, store, "r-3", "admin-a", "m-2", time.Date(2025, 12, 2, 7, 0, 0, 0, time.UTC))

	report, err := svc.LowAttendance(ctx, "admin-a", "2025-12")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Threshold)
	require.Len(t, report.Members, 1)
	assert.Equal(t, domain.LowAttendanceMember{MemberID: "m-2", Name: "Bob", Visits: 1}, report.Members[0])
}

type leakyAttendanceRepo struct {
	records []domain.AttendanceRecord
	err     error
}

func (l *leakyAttendanceRepo) ListByPeriod(context.Context, string, time.Time, time.Time) ([]domain.AttendanceRecord, error) {
	return l.records, l.err
}

func (l *leakyAttendanceRepo) Create(context.Context, domain.AttendanceRecord) error { return l.err }

func (l *leakyAttendanceRepo) FindRecord(context.Context, string, string) (*domain.AttendanceRecord, error) {
	return nil, l.err
}
