package domain

import (
	"context"
	"encoding/json"
	"time"
)

// MembershipPlan is a plan offered by the gym. It only exists inside Settings.
type MembershipPlan struct {
	Name             string  `json:"name" bson:"name" validate:"required,max=60"`
	DurationInMonths int     `json:"durationInMonths" bson:"durationInMonths" validate:"min=1,max=120"`
	Price            float64 `json:"price" bson:"price" validate:"gte=0"`
	IsActive         bool    `json:"isActive" bson:"isActive"`
}

// UnmarshalJSON treats a plan without isActive as active.
func (p *MembershipPlan) UnmarshalJSON(data []byte) error {
	type plan MembershipPlan
	var aux struct {
		plan
		IsActive *bool `json:"isActive"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = MembershipPlan(aux.plan)
	p.IsActive = aux.IsActive == nil || *aux.IsActive
	return nil
}

// Settings is the per-admin gym configuration.
type Settings struct {
	AdminID                     string           `json:"adminId" bson:"adminId"`
	GymName                     string           `json:"gymName" bson:"gymName"`
	GymCode                     string           `json:"gymCode" bson:"gymCode"`
	Address                     string           `json:"address" bson:"address"`
	Phone                       string           `json:"phone" bson:"phone"`
	Email                       string           `json:"email" bson:"email"`
	OpeningTime                 string           `json:"openingTime" bson:"openingTime"`
	ClosingTime                 string           `json:"closingTime" bson:"closingTime"`
	WorkingDays                 []string         `json:"workingDays" bson:"workingDays"`
	Currency                    string           `json:"currency" bson:"currency"`
	MembershipPlans             []MembershipPlan `json:"membershipPlans" bson:"membershipPlans"`
	RenewalReminderDays         int              `json:"renewalReminderDays" bson:"renewalReminderDays"`
	LowAttendanceAlertThreshold int              `json:"lowAttendanceAlertThreshold" bson:"lowAttendanceAlertThreshold"`
	CreatedAt                   time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt                   time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// DefaultMembershipPlans returns the catalog every new gym starts with.
func DefaultMembershipPlans() []MembershipPlan {
	return []MembershipPlan{
		{Name: "Monthly", DurationInMonths: 1, Price: 1000, IsActive: true},
		{Name: "Quarterly", DurationInMonths: 3, Price: 2700, IsActive: true},
		{Name: "Half-Yearly", DurationInMonths: 6, Price: 5000, IsActive: true},
		{Name: "Yearly", DurationInMonths: 12, Price: 9000, IsActive: true},
	}
}

// DefaultSettings returns the record materialized on an admin's first access.
func DefaultSettings(adminID string, now time.Time) Settings {
	return Settings{
		AdminID:                     adminID,
		OpeningTime:                 "06:00",
		ClosingTime:                 "22:00",
		WorkingDays:                 []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		Currency:                    "INR",
		MembershipPlans:             DefaultMembershipPlans(),
		RenewalReminderDays:         7,
		LowAttendanceAlertThreshold: 8,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
}

// SettingsPatch is a partial settings update. Nil fields are left untouched.
// It has no admin field; ownership always comes from the caller.
type SettingsPatch struct {
	GymName                     *string          `json:"gymName,omitempty" validate:"omitempty,max=120"`
	GymCode                     *string          `json:"gymCode,omitempty" validate:"omitempty,max=32"`
	Address                     *string          `json:"address,omitempty" validate:"omitempty,max=500"`
	Phone                       *string          `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email                       *string          `json:"email,omitempty" validate:"omitempty,email"`
	OpeningTime                 *string          `json:"openingTime,omitempty" validate:"omitempty,datetime=15:04"`
	ClosingTime                 *string          `json:"closingTime,omitempty" validate:"omitempty,datetime=15:04"`
	WorkingDays                 []string         `json:"workingDays,omitempty" validate:"omitempty,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Currency                    *string          `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	MembershipPlans             []MembershipPlan `json:"membershipPlans,omitempty" validate:"omitempty,dive"`
	RenewalReminderDays         *int             `json:"renewalReminderDays,omitempty" validate:"omitempty,gte=0,lte=365"`
	LowAttendanceAlertThreshold *int             `json:"lowAttendanceAlertThreshold,omitempty" validate:"omitempty,gte=0,lte=31"`
}

// Fields returns the patched fields keyed by their stored names.
func (p SettingsPatch) Fields() map[string]any {
	fields := make(map[string]any)
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	setInt := func(key string, v *int) {
		if v != nil {
			fields[key] = *v
		}
	}
	setString("gymName", p.GymName)
	setString("gymCode", p.GymCode)
	setString("address", p.Address)
	setString("phone", p.Phone)
	setString("email", p.Email)
	setString("openingTime", p.OpeningTime)
	setString("closingTime", p.ClosingTime)
	if p.WorkingDays != nil {
		fields["workingDays"] = append(make([]string, 0, len(p.WorkingDays)), p.WorkingDays...)
	}
	setString("currency", p.Currency)
	if p.MembershipPlans != nil {
		fields["membershipPlans"] = append(make([]MembershipPlan, 0, len(p.MembershipPlans)), p.MembershipPlans...)
	}
	setInt("renewalReminderDays", p.RenewalReminderDays)
	setInt("lowAttendanceAlertThreshold", p.LowAttendanceAlertThreshold)
	return fields
}

// Apply merges the patch into s. Fields absent from the patch keep their values.
func (p SettingsPatch) Apply(s *Settings) {
	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&s.GymName, p.GymName)
	assign(&s.GymCode, p.GymCode)
	assign(&s.Address, p.Address)
	assign(&s.Phone, p.Phone)
	assign(&s.Email, p.Email)
	assign(&s.OpeningTime, p.OpeningTime)
	assign(&s.ClosingTime, p.ClosingTime)
	assign(&s.Currency, p.Currency)
	if p.WorkingDays != nil {
		s.WorkingDays = append(make([]string, 0, len(p.WorkingDays)), p.WorkingDays...)
	}
	if p.MembershipPlans != nil {
		s.MembershipPlans = append(make([]MembershipPlan, 0, len(p.MembershipPlans)), p.MembershipPlans...)
	}
	if p.RenewalReminderDays != nil {
		s.RenewalReminderDays = *p.RenewalReminderDays
	}
	if p.LowAttendanceAlertThreshold != nil {
		s.LowAttendanceAlertThreshold = *p.LowAttendanceAlertThreshold
	}
}

// SettingsRepository persists one Settings document per admin.
type SettingsRepository interface {
	// Get returns nil when the admin has no settings yet.
	Get(ctx context.Context, adminID string) (*Settings, error)
	// GetOrCreate atomically inserts defaults when absent and reports whether it did.
	GetOrCreate(ctx context.Context, adminID string, defaults Settings) (Settings, bool, error)
	// Upsert merges patch into the admin's settings, inserting defaults first when absent.
	Upsert(ctx context.Context, adminID string, patch SettingsPatch, defaults Settings) (Settings, error)
}
