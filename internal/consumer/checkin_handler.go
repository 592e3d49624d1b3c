package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/gym/internal/domain"
	"example.com/gym/internal/events"
)

// ErrPermanent marks events that will never succeed; the processor commits past them.
var ErrPermanent = errors.New("permanent event failure")

// CheckInRecorder is the subset of the attendance service used by the consumer.
type CheckInRecorder interface {
	RecordCheckIn(ctx context.Context, input domain.CheckInInput) (*domain.AttendanceRecord, error)
}

// CheckInHandler stores attendance.checked_in events as attendance records.
type CheckInHandler struct {
	recorder CheckInRecorder
}

// NewCheckInHandler constructs a handler writing through recorder.
func NewCheckInHandler(recorder CheckInRecorder) *CheckInHandler {
	return &CheckInHandler{recorder: recorder}
}

// Handle decodes the check-in and records it. Events of other types are ignored.
func (h *CheckInHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeMemberCheckedIn {
		return nil
	}

	var payload events.MemberCheckedIn
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("%w: decode check-in: %v", ErrPermanent, err)
	}

	// The header is authoritative for ownership; the payload may only repeat it.
	adminID := msg.AdminID
	if adminID == "" {
		return fmt.Errorf("%w: missing admin_id header", ErrPermanent)
	}
	if payload.AdminID != "" && payload.AdminID != adminID {
		return fmt.Errorf("%w: payload admin %q does not match header", ErrPermanent, payload.AdminID)
	}

	checkedInAt := payload.CheckedInAt
	if checkedInAt.IsZero() {
		checkedInAt = msg.Timestamp
	}
	recordID := payload.RecordID
	if recordID == "" {
		// Redelivery of the same offset must not create a second visit.
		recordID = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
	}

	_, err := h.recorder.RecordCheckIn(ctx, domain.CheckInInput{
		AdminID:     adminID,
		MemberID:    payload.MemberID,
		RecordID:    recordID,
		CheckedInAt: checkedInAt.UTC().Truncate(time.Second),
	})
	if errors.Is(err, domain.ErrMemberNotFound) || errors.Is(err, domain.ErrInvalidCheckIn) || errors.Is(err, domain.ErrCheckInConflict) {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return err
}
