package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var friendlyMessages = map[string]string{
	"account_blocked_permanently":  "Your account has been permanently blocked. Please contact support.",
	"invalid_credentials":          "Incorrect email or password",
	"unauthorized":                 "You are not authorized to perform this action",
	"account_not_verified":         "Your account is not verified, Kindly click on the link sent to your mail to verify your account.",
	"method_not_allowed":           "You are not allowed to perform this action",
	"logged_out":                   "You were logged out because your account was used on another device.",
	"account_temporarily_blocked":  "Your account is blocked temporarily. Please try again after  the required minutes.",
	"account_temporarily_blocked1": "Your account has been blocked temporarily. Please try again after 10 minutes.",
	"account_temporarily_blocked2": "Your account has been temporarily blocked. Please try again after 30 minutes.",
}

// Error is a non-2xx backend reply. Code is the backend's raw error value and
// Message the user-facing text.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// FriendlyMessage maps a backend error code to user-facing text. Unknown
// codes pass through unchanged.
func FriendlyMessage(code string) string {
	if msg, ok := friendlyMessages[code]; ok {
		return msg
	}
	return code
}

// IsUnauthorized reports whether err means the credentials carry no session.
func IsUnauthorized(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Status == http.StatusUnauthorized || be.Code == "unauthorized" || be.Code == "logged_out"
}

// parseError builds an Error from a failed reply. JSON bodies contribute
// their "error" (or "message") member; other bodies are used as text.
func parseError(status int, contentType string, body []byte) *Error {
	raw := ""
	if strings.Contains(contentType, "application/json") {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(body, &payload); err == nil {
			raw = stringMember(payload["error"])
			if raw == "" {
				raw = stringMember(payload["message"])
			}
		}
	} else {
		raw = strings.TrimSpace(string(body))
	}
	if raw == "" {
		raw = fmt.Sprintf("Request failed (%d)", status)
	}
	return &Error{Status: status, Code: raw, Message: FriendlyMessage(raw)}
}

// stringMember returns a JSON string's value, or the compact JSON text of any
// other non-null value.
func stringMember(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
