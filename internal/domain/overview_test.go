package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/gym/internal/domain"
)

func TestParsePeriodHandlesMonthLengths(t *testing.T) {
	tests := []struct {
		month string
		start time.Time
		end   time.Time
	}{
		{
			month: "2025-02",
			start: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, time.February, 28, 23, 59, 59, 999999999, time.UTC),
		},
		{
			month: "2024-02",
			start: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, time.February, 29, 23, 59, 59, 999999999, time.UTC),
		},
		{
			month: "2025-12",
			start: time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, time.December, 31, 23, 59, 59, 999999999, time.UTC),
		},
		{
			month: "2025-04",
			start: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, time.April, 30, 23, 59, 59, 999999999, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			period, err := domain.ParsePeriod(tt.month, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.start.Equal(period.Start), "start %s", period.Start)
			assert.True(t, tt.end.Equal(period.End), "end %s", period.End)
		})
	}
}

func TestParsePeriodUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	period, err := domain.ParsePeriod("2025-03", loc)
	require.NoError(t, err)

	assert.Equal(t, loc, period.Start.Location())
	assert.Equal(t, 31, period.End.Day())
	assert.Equal(t, 23, period.End.Hour())
}

func TestParsePeriodRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{"", "2025", "2025-13", "2025-00", "2025/02", "25-02", "2025-2", "2025-02-01", " 2025-02", "abcd-ef", "0000-01", "0000-12"} {
		t.Run(input, func(t *testing.T) {
			_, err := domain.ParsePeriod(input, time.UTC)
			require.ErrorIs(t, err, domain.ErrInvalidYearMonth)
		})
	}
}

func TestParsePeriodAcceptsFirstCommonEraYear(t *testing.T) {
	period, err := domain.ParsePeriod("0001-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, period.Start.Year())
	assert.Equal(t, 31, period.End.Day())
}

func TestAggregateIsSparse(t *testing.T) {
	period, err := domain.ParsePeriod("2025-12", time.UTC)
	require.NoError(t, err)

	alice := domain.Member{ID: "m-1", AdminID: "admin-a", Name: "Alice"}
	valid := []domain.ResolvedRecord{
		{Record: record("r-1", "admin-a", "m-1", time.Date(2025, 12, 3, 7, 0, 0, 0, time.UTC)), Member: alice},
		{Record: record("r-2", "admin-a", "m-1", time.Date(2025, 12, 17, 18, 30, 0, 0, time.UTC)), Member: alice},
		{Record: record("r-3", "admin-a", "m-1", time.Date(2025, 12, 17, 19, 0, 0, 0, time.UTC)), Member: alice},
	}

	entries := domain.Aggregate("admin-a", period, valid)

	require.Len(t, entries, 1)
	entry := entries["m-1"]
	assert.Equal(t, "m-1", entry.MemberID)
	assert.Equal(t, "admin-a", entry.AdminID)
	assert.Equal(t, "Alice", entry.Name)
	assert.Equal(t, map[int]int{3: 1, 17: 1}, entry.Days)
	assert.NotContains(t, entries, "m-2")
}

func TestAggregateSkipsForeignAndOutOfRangeRecords(t *testing.T) {
	period, err := domain.ParsePeriod("2025-02", time.UTC)
	require.NoError(t, err)

	bob := domain.Member{ID: "m-2", AdminID: "admin-b", Name: "Bob"}
	carol := domain.Member{ID: "m-3", AdminID: "admin-a", Name: "Carol"}
	valid := []domain.ResolvedRecord{
		{Record: record("r-1", "admin-b", "m-2", time.Date(2025, 2, 3, 7, 0, 0, 0, time.UTC)), Member: bob},
		{Record: record("r-2", "admin-a", "m-3", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)), Member: carol},
		{Record: record("r-3", "admin-a", "m-3", time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)), Member: carol},
	}

	entries := domain.Aggregate("admin-a", period, valid)

	require.Len(t, entries, 1)
	assert.Equal(t, map[int]int{28: 1}, entries["m-3"].Days)
}

func TestAggregateUsesPeriodLocationForDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	period, err := domain.ParsePeriod("2025-12", loc)
	require.NoError(t, err)

	dave := domain.Member{ID: "m-4", AdminID: "admin-a", Name: "Dave"}
	// 20:00 UTC on the 4th is already the 5th in IST.
	valid := []domain.ResolvedRecord{
		{Record: record("r-1", "admin-a", "m-4", time.Date(2025, 12, 4, 20, 0, 0, 0, time.UTC)), Member: dave},
	}

	entries := domain.Aggregate("admin-a", period, valid)

	assert.Equal(t, map[int]int{5: 1}, entries["m-4"].Days)
}

func TestAggregateIsDeterministic(t *testing.T) {
	period, err := domain.ParsePeriod("2025-12", time.UTC)
	require.NoError(t, err)

	eve := domain.Member{ID: "m-5", AdminID: "admin-a", Name: "Eve"}
	valid := []domain.ResolvedRecord{
		{Record: record("r-1", "admin-a", "m-5", time.Date(2025, 12, 1, 6, 0, 0, 0, time.UTC)), Member: eve},
	}

	assert.Equal(t, domain.Aggregate("admin-a", period, valid), domain.Aggregate("admin-a", period, valid))
	assert.Empty(t, domain.Aggregate("admin-a", period, nil))
}

func record(id, adminID, memberID string, date time.Time) domain.AttendanceRecord {
	return domain.AttendanceRecord{ID: id, AdminID: adminID, MemberID: memberID, Date: date}
}
