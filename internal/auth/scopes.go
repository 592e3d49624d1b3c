package auth

// Known OAuth scopes used by the dashboard API.
const (
	ScopeSettingsRead    = "settings:read"
	ScopeSettingsWrite   = "settings:write"
	ScopeAttendanceRead  = "attendance:read"
	ScopeAttendanceWrite = "attendance:write"
)
