package errors

import "strconv"

// ErrorCode identifies an application error in API responses
type ErrorCode int32

const (
	ErrorCode_UNSPECIFIED ErrorCode = 0

	ErrorCode_HTTP_OK ErrorCode = 200

	// General
	ErrorCode_INTERNAL         ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT ErrorCode = 1001
	ErrorCode_UNAUTHENTICATED  ErrorCode = 1004
	ErrorCode_INVALID_PAYLOAD  ErrorCode = 1006

	// Authentication
	ErrorCode_AUTH_INVALID_TOKEN ErrorCode = 2000
	ErrorCode_AUTH_TOKEN_EXPIRED ErrorCode = 2001

	// Calls
	ErrorCode_CALL_STORE_UNAVAILABLE   ErrorCode = 3000
	ErrorCode_CALL_SESSION_NOT_FOUND   ErrorCode = 3001
	ErrorCode_CALL_SESSION_CLOSED      ErrorCode = 3002
	ErrorCode_CALL_NOT_TRACKED         ErrorCode = 3003
	ErrorCode_CALL_NOTHING_RINGING     ErrorCode = 3004
	ErrorCode_CALL_NOT_IN_CALL         ErrorCode = 3005
	ErrorCode_MEETING_NOT_FOUND        ErrorCode = 3100
	ErrorCode_MEETING_NOT_ORGANIZER    ErrorCode = 3101
	ErrorCode_MEETING_NO_MEMBERS       ErrorCode = 3102
	ErrorCode_NOTIFICATION_UNAVAILABLE ErrorCode = 3200
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_UNSPECIFIED:              "UNSPECIFIED",
	ErrorCode_HTTP_OK:                  "HTTP_OK",
	ErrorCode_INTERNAL:                 "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:         "INVALID_ARGUMENT",
	ErrorCode_UNAUTHENTICATED:          "UNAUTHENTICATED",
	ErrorCode_INVALID_PAYLOAD:          "INVALID_PAYLOAD",
	ErrorCode_AUTH_INVALID_TOKEN:       "AUTH_INVALID_TOKEN",
	ErrorCode_AUTH_TOKEN_EXPIRED:       "AUTH_TOKEN_EXPIRED",
	ErrorCode_CALL_STORE_UNAVAILABLE:   "CALL_STORE_UNAVAILABLE",
	ErrorCode_CALL_SESSION_NOT_FOUND:   "CALL_SESSION_NOT_FOUND",
	ErrorCode_CALL_SESSION_CLOSED:      "CALL_SESSION_CLOSED",
	ErrorCode_CALL_NOT_TRACKED:         "CALL_NOT_TRACKED",
	ErrorCode_CALL_NOTHING_RINGING:     "CALL_NOTHING_RINGING",
	ErrorCode_CALL_NOT_IN_CALL:         "CALL_NOT_IN_CALL",
	ErrorCode_MEETING_NOT_FOUND:        "MEETING_NOT_FOUND",
	ErrorCode_MEETING_NOT_ORGANIZER:    "MEETING_NOT_ORGANIZER",
	ErrorCode_MEETING_NO_MEMBERS:       "MEETING_NO_MEMBERS",
	ErrorCode_NOTIFICATION_UNAVAILABLE: "NOTIFICATION_UNAVAILABLE",
}

// String returns the symbolic name of the code
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "ErrorCode(" + strconv.Itoa(int(c)) + ")"
}

// MarshalText renders the code by name in JSON bodies
func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
