// Package events defines the event payloads exchanged over Kafka.
package events

import "time"

// Event types carried in the event_type header.
const (
	TypeSettingsUpdated = "settings.updated"
	TypeOrphansDetected = "attendance.orphans_detected"
	TypeMemberCheckedIn = "attendance.checked_in"
)

// SettingsUpdated is emitted after an admin's settings were merged and stored.
type SettingsUpdated struct {
	AdminID       string    `json:"adminId"`
	ChangedFields []string  `json:"changedFields"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// OrphanedRecord identifies an attendance record whose member no longer resolves.
type OrphanedRecord struct {
	RecordID string    `json:"recordId"`
	Date     time.Time `json:"date"`
}

// OrphansDetected reports broken member references found while building an overview.
type OrphansDetected struct {
	AdminID    string           `json:"adminId"`
	Month      string           `json:"month"`
	Records    []OrphanedRecord `json:"records"`
	DetectedAt time.Time        `json:"detectedAt"`
}

// MemberCheckedIn is produced by front-desk terminals when a member enters the gym.
type MemberCheckedIn struct {
	RecordID    string    `json:"recordId,omitempty"`
	AdminID     string    `json:"adminId"`
	MemberID    string    `json:"memberId"`
	CheckedInAt time.Time `json:"checkedInAt"`
}
