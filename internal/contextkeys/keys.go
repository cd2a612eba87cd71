package contextkeys

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// Subject is the context key for the authenticated admin token subject.
	Subject contextKey = "subject"
	// Role is the context key for the authenticated token role.
	Role contextKey = "role"
	// RequestID is the context key for the per-request correlation id.
	RequestID contextKey = "requestID"
)
