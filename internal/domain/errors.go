package domain

import "errors"

var (
	// ErrInvalidYearMonth is returned for month specifiers that are not YYYY-MM.
	ErrInvalidYearMonth = errors.New("invalid year-month, expected YYYY-MM")
	// ErrInvalidSettings wraps validation failures of a settings payload.
	ErrInvalidSettings = errors.New("invalid settings payload")
	// ErrInvalidCheckIn wraps validation failures of a check-in.
	ErrInvalidCheckIn = errors.New("invalid check-in")
	// ErrCheckInConflict is returned when an idempotency key is replayed for a different visit.
	ErrCheckInConflict = errors.New("idempotency key already used for a different check-in")
	// ErrMemberNotFound is returned when a check-in names an unknown member.
	ErrMemberNotFound = errors.New("member not found")

	// ErrSettingsFetch is returned when settings cannot be loaded or created.
	ErrSettingsFetch = errors.New("failed to fetch settings")
	// ErrSettingsUpdate is returned when settings cannot be stored.
	ErrSettingsUpdate = errors.New("failed to update settings")
	// ErrAttendanceFetch is returned when attendance or members cannot be loaded.
	ErrAttendanceFetch = errors.New("failed to fetch attendance")
	// ErrAttendanceStore is returned when a check-in cannot be stored.
	ErrAttendanceStore = errors.New("failed to record attendance")

	// ErrConflict is returned by stores when a concurrent insert won a uniqueness race.
	ErrConflict = errors.New("duplicate key conflict")
)
