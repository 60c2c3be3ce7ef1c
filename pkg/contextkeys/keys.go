package contextkeys

type contextKey string

const (
	UserIDKey    contextKey = "UserID"
	RequestIDKey contextKey = "RequestID"
	IPAddressKey contextKey = "IPAddress"
)
