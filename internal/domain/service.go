// Package domain defines the attendance and settings business logic.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/gym/internal/events"
	"example.com/gym/internal/observability"
)

// AttendanceService builds monthly overviews and records check-ins.
type AttendanceService struct {
	records   AttendanceRepository
	members   MemberRepository
	settings  *SettingsService
	publisher Publisher
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

// AttendanceOption configures an AttendanceService.
type AttendanceOption func(*AttendanceService)

// WithLocation sets the time zone used for month boundaries and day-of-month.
func WithLocation(loc *time.Location) AttendanceOption {
	return func(s *AttendanceService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithPublisher sets the publisher used for integrity events.
func WithPublisher(p Publisher) AttendanceOption {
	return func(s *AttendanceService) { s.publisher = p }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) AttendanceOption {
	return func(s *AttendanceService) { s.logger = l }
}

// WithClock overrides the clock used for default check-in times.
func WithClock(now func() time.Time) AttendanceOption {
	return func(s *AttendanceService) { s.now = now }
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(records AttendanceRepository, members MemberRepository, settings *SettingsService, opts ...AttendanceOption) *AttendanceService {
	s := &AttendanceService{
		records:   records,
		members:   members,
		settings:  settings,
		publisher: noopPublisher{},
		logger:    slog.Default(),
		loc:       time.UTC,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "attendance")
	return s
}

// Overview returns the admin's per-member presence map for yearMonth along
// with records whose member reference is broken.
func (s *AttendanceService) Overview(ctx context.Context, adminID, yearMonth string) (*MonthlyOverview, error) {
	start := time.Now()
	period, err := ParsePeriod(yearMonth, s.loc)
	if err != nil {
		return nil, err
	}

	records, err := s.records.ListByPeriod(ctx, adminID, period.Start, period.End)
	if err != nil {
		s.logger.Error("attendance fetch failed", "admin_id", adminID, "month", yearMonth, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAttendanceFetch, err)
	}

	owned := make([]AttendanceRecord, 0, len(records))
	for _, record := range records {
		if record.AdminID == adminID {
			owned = append(owned, record)
		}
	}

	members, err := s.members.FindByIDs(ctx, adminID, memberIDs(owned))
	if err != nil {
		s.logger.Error("member resolution failed", "admin_id", adminID, "month", yearMonth, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAttendanceFetch, err)
	}

	resolution := ResolveReferences(owned, members)
	if len(resolution.Orphaned) > 0 {
		s.reportOrphans(ctx, adminID, yearMonth, resolution.Orphaned)
	}

	overview := &MonthlyOverview{
		Month:    yearMonth,
		Period:   period,
		Entries:  Aggregate(adminID, period, resolution.Valid),
		Orphaned: resolution.Orphaned,
	}
	observability.ObserveOverview(time.Since(start))
	return overview, nil
}

func (s *AttendanceService) reportOrphans(ctx context.Context, adminID, yearMonth string, orphaned []OrphanedRecord) {
	observability.RecordOrphanedRecords(len(orphaned))
	payload := events.OrphansDetected{
		AdminID:    adminID,
		Month:      yearMonth,
		Records:    make([]events.OrphanedRecord, 0, len(orphaned)),
		DetectedAt: s.now(),
	}
	for _, o := range orphaned {
		s.logger.Warn("orphaned attendance record", "admin_id", adminID, "record_id", o.RecordID, "date", o.Date)
		payload.Records = append(payload.Records, events.OrphanedRecord{RecordID: o.RecordID, Date: o.Date})
	}
	if err := s.publisher.Publish(ctx, events.TypeOrphansDetected, adminID, adminID+":"+yearMonth, payload); err != nil {
		s.logger.Warn("orphan report publish failed", "admin_id", adminID, "error", err)
	}
}

// CheckInInput captures a member visit.
type CheckInInput struct {
	AdminID     string
	MemberID    string
	RecordID    string
	CheckedInAt time.Time
}

// checkInNamespace scopes client idempotency keys to an admin.
var checkInNamespace = uuid.MustParse("6f1c2a9e-4b7d-4e21-9c3a-2d5f8e7b1a04")

// CheckInRecordID derives the stored record id for a client idempotency key.
// Equal keys from different admins never collide.
func CheckInRecordID(adminID, key string) string {
	return uuid.NewSHA1(checkInNamespace, []byte(adminID+":"+key)).String()
}

// RecordCheckIn stores a visit for a member owned by the admin. Replaying the
// same idempotency key for the same member returns the stored record; reusing
// it for another member fails with ErrCheckInConflict.
func (s *AttendanceService) RecordCheckIn(ctx context.Context, input CheckInInput) (*AttendanceRecord, error) {
	if strings.TrimSpace(input.AdminID) == "" {
		return nil, fmt.Errorf("%w: adminId is required", ErrInvalidCheckIn)
	}
	if strings.TrimSpace(input.MemberID) == "" {
		return nil, fmt.Errorf("%w: memberId is required", ErrInvalidCheckIn)
	}

	members, err := s.members.FindByIDs(ctx, input.AdminID, []string{input.MemberID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttendanceFetch, err)
	}
	if _, ok := members[input.MemberID]; !ok {
		return nil, ErrMemberNotFound
	}

	record := AttendanceRecord{
		ID:       uuid.NewString(),
		AdminID:  input.AdminID,
		MemberID: input.MemberID,
		Date:     input.CheckedInAt.UTC(),
	}
	if key := strings.TrimSpace(input.RecordID); key != "" {
		record.ID = CheckInRecordID(input.AdminID, key)
	}
	if input.CheckedInAt.IsZero() {
		record.Date = s.now()
	}

	err = s.records.Create(ctx, record)
	if errors.Is(err, ErrConflict) {
		return s.replayCheckIn(ctx, record)
	}
	if err != nil {
		s.logger.Error("check-in store failed", "admin_id", input.AdminID, "member_id", input.MemberID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAttendanceStore, err)
	}
	observability.RecordCheckIn(record.Date)
	return &record, nil
}

func (s *AttendanceService) replayCheckIn(ctx context.Context, record AttendanceRecord) (*AttendanceRecord, error) {
	existing, err := s.records.FindRecord(ctx, record.AdminID, record.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttendanceStore, err)
	}
	if existing == nil || existing.MemberID != record.MemberID {
		s.logger.Warn("check-in key reused", "admin_id", record.AdminID, "record_id", record.ID, "member_id", record.MemberID)
		return nil, ErrCheckInConflict
	}
	return existing, nil
}

// LowAttendanceMember is a roster member below the admin's monthly visit threshold.
type LowAttendanceMember struct {
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
	Visits   int    `json:"visits"`
}

// LowAttendanceReport lists members under the threshold for a month.
type LowAttendanceReport struct {
	Month     string                `json:"month"`
	Threshold int                   `json:"threshold"`
	Members   []LowAttendanceMember `json:"members"`
}

// LowAttendance reports roster members whose number of visit days in
// yearMonth is below the admin's lowAttendanceAlertThreshold.
func (s *AttendanceService) LowAttendance(ctx context.Context, adminID, yearMonth string) (*LowAttendanceReport, error) {
	overview, err := s.Overview(ctx, adminID, yearMonth)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetOrCreate(ctx, adminID)
	if err != nil {
		return nil, err
	}
	roster, err := s.members.List(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttendanceFetch, err)
	}

	report := &LowAttendanceReport{
		Month:     yearMonth,
		Threshold: settings.LowAttendanceAlertThreshold,
		Members:   make([]LowAttendanceMember, 0),
	}
	for _, member := range roster {
		if member.AdminID != adminID || member.JoinedAt.After(overview.Period.End) {
			continue
		}
		visits := len(overview.Entries[member.ID].Days)
		if visits < report.Threshold {
			report.Members = append(report.Members, LowAttendanceMember{MemberID: member.ID, Name: member.Name, Visits: visits})
		}
	}
	sort.Slice(report.Members, func(i, j int) bool {
		a, b := report.Members[i], report.Members[j]
		if a.Visits != b.Visits {
			return a.Visits < b.Visits
		}
		return a.Name < b.Name
	})
	return report, nil
}
