package domain

import (
	"context"
	"time"
)

// Member is a gym member owned by a single admin.
type Member struct {
	ID       string    `json:"id" bson:"_id"`
	AdminID  string    `json:"adminId" bson:"adminId"`
	Name     string    `json:"name" bson:"name"`
	Email    string    `json:"email,omitempty" bson:"email,omitempty"`
	Phone    string    `json:"phone,omitempty" bson:"phone,omitempty"`
	JoinedAt time.Time `json:"joinedAt" bson:"joinedAt"`
}

// AttendanceRecord is a single visit. MemberID is empty once the member
// reference has been nulled by a deletion.
type AttendanceRecord struct {
	ID       string    `json:"id" bson:"_id"`
	AdminID  string    `json:"adminId" bson:"adminId"`
	MemberID string    `json:"memberId" bson:"memberId"`
	Date     time.Time `json:"date" bson:"date"`
}

// ResolvedRecord pairs a record with the member its reference points to.
type ResolvedRecord struct {
	Record AttendanceRecord
	Member Member
}

// OrphanedRecord is reported for records whose member could not be resolved.
type OrphanedRecord struct {
	RecordID string    `json:"recordId"`
	Date     time.Time `json:"date"`
}

// Resolution is the outcome of resolving member references.
type Resolution struct {
	Valid    []ResolvedRecord
	Orphaned []OrphanedRecord
}

// OverviewEntry is one member's presence map for a month. Days only holds
// days with at least one visit, each mapped to 1.
type OverviewEntry struct {
	MemberID string      `json:"memberId"`
	AdminID  string      `json:"adminId"`
	Name     string      `json:"name"`
	Days     map[int]int `json:"days"`
}

// MonthlyOverview bundles the per-member presence maps with integrity warnings.
type MonthlyOverview struct {
	Month    string
	Period   Period
	Entries  map[string]OverviewEntry
	Orphaned []OrphanedRecord
}

// AttendanceRepository captures attendance persistence operations.
type AttendanceRepository interface {
	// ListByPeriod returns the admin's records with from <= Date <= to.
	ListByPeriod(ctx context.Context, adminID string, from, to time.Time) ([]AttendanceRecord, error)
	// Create stores a record. It returns ErrConflict when the id is already taken.
	Create(ctx context.Context, record AttendanceRecord) error
	// FindRecord returns the admin's record with id, or nil when the admin has none.
	FindRecord(ctx context.Context, adminID, id string) (*AttendanceRecord, error)
}

// MemberRepository resolves member references.
type MemberRepository interface {
	// FindByIDs returns the admin's members keyed by id. Unknown ids are absent from the map.
	FindByIDs(ctx context.Context, adminID string, ids []string) (map[string]Member, error)
	List(ctx context.Context, adminID string) ([]Member, error)
}

// RosterRepository maintains the member roster. Deleting a member leaves
// its attendance records in place with an empty member reference.
type RosterRepository interface {
	SaveMember(ctx context.Context, member Member) error
	DeleteMember(ctx context.Context, adminID, memberID string) error
}
