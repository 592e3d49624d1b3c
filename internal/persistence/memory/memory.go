// Package memory provides in-process stores for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/gym/internal/domain"
)

// Store keeps members, attendance and settings in memory. It satisfies the
// attendance, member and settings repository contracts.
type Store struct {
	mu         sync.RWMutex
	members    map[string]domain.Member
	attendance map[string]domain.AttendanceRecord
	settings   map[string]domain.Settings
	now        func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		members:    make(map[string]domain.Member),
		attendance: make(map[string]domain.AttendanceRecord),
		settings:   make(map[string]domain.Settings),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AddMember stores or replaces a member, assigning an id when missing.
func (s *Store) AddMember(member domain.Member) domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(member.ID) == "" {
		member.ID = uuid.NewString()
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = s.now()
	}
	s.members[member.ID] = member
	return member
}

// SaveMember implements domain.RosterRepository.
func (s *Store) SaveMember(ctx context.Context, member domain.Member) error {
	s.AddMember(member)
	return nil
}

// DeleteMember removes a member and nulls the reference on its attendance
// records, leaving them orphaned.
func (s *Store) DeleteMember(ctx context.Context, adminID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if member, ok := s.members[memberID]; !ok || member.AdminID != adminID {
		return nil
	}
	delete(s.members, memberID)
	for id, record := range s.attendance {
		if record.MemberID == memberID {
			record.MemberID = ""
			s.attendance[id] = record
		}
	}
	return nil
}

// Create implements domain.AttendanceRepository.
func (s *Store) Create(ctx context.Context, record domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if _, exists := s.attendance[record.ID]; exists {
		return domain.ErrConflict
	}
	s.attendance[record.ID] = record
	return nil
}

// FindRecord implements domain.AttendanceRepository.
func (s *Store) FindRecord(ctx context.Context, adminID, id string) (*domain.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.attendance[id]
	if !ok || record.AdminID != adminID {
		return nil, nil
	}
	return &record, nil
}

// ListByPeriod implements domain.AttendanceRepository.
func (s *Store) ListByPeriod(ctx context.Context, adminID string, from, to time.Time) ([]domain.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AttendanceRecord, 0)
	for _, record := range s.attendance {
		if record.AdminID != adminID || record.Date.Before(from) || record.Date.After(to) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// FindByIDs implements domain.MemberRepository.
func (s *Store) FindByIDs(ctx context.Context, adminID string, ids []string) (map[string]domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Member, len(ids))
	for _, id := range ids {
		if member, ok := s.members[id]; ok && member.AdminID == adminID {
			out[id] = member
		}
	}
	return out, nil
}

// List implements domain.MemberRepository.
func (s *Store) List(ctx context.Context, adminID string) ([]domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Member, 0)
	for _, member := range s.members {
		if member.AdminID == adminID {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get implements domain.SettingsRepository.
func (s *Store) Get(ctx context.Context, adminID string) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[adminID]
	if !ok {
		return nil, nil
	}
	out := cloneSettings(settings)
	return &out, nil
}

// GetOrCreate implements domain.SettingsRepository.
func (s *Store) GetOrCreate(ctx context.Context, adminID string, defaults domain.Settings) (domain.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.settings[adminID]; ok {
		return cloneSettings(existing), false, nil
	}
	defaults.AdminID = adminID
	s.settings[adminID] = cloneSettings(defaults)
	return cloneSettings(defaults), true, nil
}

// Upsert implements domain.SettingsRepository.
func (s *Store) Upsert(ctx context.Context, adminID string, patch domain.SettingsPatch, defaults domain.Settings) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.settings[adminID]
	if !ok {
		current = cloneSettings(defaults)
	}
	patch.Apply(&current)
	current.AdminID = adminID
	current.UpdatedAt = s.now()
	s.settings[adminID] = current
	return cloneSettings(current), nil
}

func cloneSettings(in domain.Settings) domain.Settings {
	out := in
	if in.WorkingDays != nil {
		out.WorkingDays = append(make([]string, 0, len(in.WorkingDays)), in.WorkingDays...)
	}
	if in.MembershipPlans != nil {
		out.MembershipPlans = append(make([]domain.MembershipPlan, 0, len(in.MembershipPlans)), in.MembershipPlans...)
	}
	return out
}
