package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Roles reported by the backend.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Scope selects the admin route family on the backend.
type Scope string

const (
	ScopeAdmin      Scope = "admin"
	ScopeSuperAdmin Scope = "super_admin"
)

// ID accepts both JSON strings and numbers.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Amount accepts numbers and numeric strings.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// User is the backend account record.
type User struct {
	ID         ID     `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	Coins      Amount `json:"coins,omitempty"`
	Role       string `json:"role,omitempty"`
	IsBlocked  bool   `json:"is_blocked,omitempty"`
	IsVerified bool   `json:"is_verify,omitempty"`
}

// TransactionUser is the owner summary embedded in a transaction.
type TransactionUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Transaction is a coin ledger entry.
type Transaction struct {
	ID             ID               `json:"id"`
	UserID         ID               `json:"user_id"`
	Amount         Amount           `json:"amount"`
	Type           string           `json:"type"`
	Description    string           `json:"description"`
	Phone          *string          `json:"phone"`
	ReceiptNumber  *string          `json:"receipt_number"`
	PaystackStatus *string          `json:"paystack_status"`
	Channel        *string          `json:"channel"`
	CreatedAt      string           `json:"created_at"`
	User           *TransactionUser `json:"user,omitempty"`
}

// Envelope carries the fields every backend reply shares. SetCookies holds
// the raw Set-Cookie headers so callers can relay them to the browser.
type Envelope struct {
	OK         bool     `json:"ok"`
	SetCookies []string `json:"-"`
}

func (e *Envelope) envelope() *Envelope { return e }

type enveloped interface {
	envelope() *Envelope
}

// Ack is a reply with no payload.
type Ack struct {
	Envelope
}

// UserReply wraps a single user.
type UserReply struct {
	Envelope
	User *User `json:"user,omitempty"`
}

// UsersReply wraps a user listing.
type UsersReply struct {
	Envelope
	Users []User `json:"users"`
}

// TransactionsReply wraps a transaction listing.
type TransactionsReply struct {
	Envelope
	Transactions []Transaction `json:"transactions"`
}

// ForgotVerifyReply carries the reset token.
type ForgotVerifyReply struct {
	Envelope
	Token string `json:"token"`
}

// PaystackReply relays the raw gateway payload.
type PaystackReply struct {
	Envelope
	HTTPStatus int             `json:"http_status"`
	Paystack   json.RawMessage `json:"paystack"`
}

// AnalyzeReply is the analysis endpoint reply.
type AnalyzeReply struct {
	Envelope
	Feedback json.RawMessage `json:"feedback"`
	Error    string          `json:"error,omitempty"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Normalize trims the email before validation.
func (r *LoginRequest) Normalize() { r.Email = strings.TrimSpace(r.Email) }

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Name            string `json:"name,omitempty"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
}

// Normalize trims the email and name before validation.
func (r *RegisterRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

// ProfileUpdate changes the display name and/or password. Nil fields are
// sent as null.
type ProfileUpdate struct {
	Name            *string `json:"name"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password"`
	ConfirmPassword *string `json:"confirm_password"`
}

// ForgotResetRequest completes password recovery.
type ForgotResetRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// Normalize trims the email before validation.
func (r *ForgotResetRequest) Normalize() { r.Email = strings.TrimSpace(r.Email) }

// CoinsRequest adds or spends coins.
type CoinsRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Description string  `json:"description,omitempty"`
}

// PaystackInitRequest starts a payment.
type PaystackInitRequest struct {
	Email       string         `json:"email" binding:"required,email"`
	Amount      float64        `json:"amount" binding:"required,gt=0"`
	Currency    string         `json:"currency,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

// Normalize trims the email before validation.
func (r *PaystackInitRequest) Normalize() { r.Email = strings.TrimSpace(r.Email) }

// AnalyzeRequest is the analysis endpoint payload. ImageBase64 is a data URL.
type AnalyzeRequest struct {
	CompanyName    string `json:"companyName"`
	JobTitle       string `json:"jobTitle"`
	JobDescription string `json:"jobDescription"`
	ImageBase64    string `json:"imageBase64"`
}

// SendEmailRequest is a single admin e-mail.
type SendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}
