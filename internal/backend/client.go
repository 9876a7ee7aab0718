// Package backend is a typed client for the account, coin ledger, payment and
// analysis backend. The backend keeps its own cookie session; every call
// forwards the caller's Credentials explicitly.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"resty.dev/v3"

	"resucheck/internal/shared/util"
)

// Credentials is the browser session forwarded to the backend.
type Credentials struct {
	Cookie string
}

// CredentialsFromRequest copies the Cookie header of an incoming request.
func CredentialsFromRequest(r *http.Request) Credentials {
	if r == nil {
		return Credentials{}
	}
	return Credentials{Cookie: strings.TrimSpace(r.Header.Get("Cookie"))}
}

// Empty reports whether no session cookie is present.
func (c Credentials) Empty() bool {
	return c.Cookie == ""
}

// Key identifies the credentials without exposing them.
func (c Credentials) Key() string {
	return util.HashUserKey(c.Cookie)
}

// Client talks to the backend over HTTP.
type Client struct {
	http *resty.Client
}

// New builds a client for baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetCookieJar(nil)
	return &Client{http: hc}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Login starts a backend session; the reply's SetCookies carry it.
func (c *Client) Login(ctx context.Context, creds Credentials, req LoginRequest) (*UserReply, error) {
	var out UserReply
	return &out, c.call(ctx, creds, http.MethodPost, "login", req, nil, &out)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, creds Credentials, req RegisterRequest) (*UserReply, error) {
	var out UserReply
	return &out, c.call(ctx, creds, http.MethodPost, "register", req, nil, &out)
}

// Logout destroys the backend session.
func (c *Client) Logout(ctx context.Context, creds Credentials) (*Ack, error) {
	var out Ack
	return &out, c.call(ctx, creds, http.MethodPost, "logout", nil, nil, &out)
}

// Me returns the user behind creds.
func (c *Client) Me(ctx context.Context, creds Credentials) (User, error) {
	var out UserReply
	if err := c.call(ctx, creds, http.MethodGet, "me", nil, nil, &out); err != nil {
		return User{}, err
	}
	if out.User == nil {
		return User{}, &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Message: FriendlyMessage("unauthorized")}
	}
	return *out.User, nil
}

// ProfileGet returns the caller's profile.
func (c *Client) ProfileGet(ctx context.Context, creds Credentials) (*UserReply, error) {
	var out UserReply
	return &out, c.call(ctx, creds, http.MethodGet, "profile", nil, nil, &out)
}

// ProfileUpdate changes the caller's profile.
func (c *Client) ProfileUpdate(ctx context.Context, creds Credentials, req ProfileUpdate) (*UserReply, error) {
	var out UserReply
	return &out, c.call(ctx, creds, http.MethodPost, "profile", req, nil, &out)
}

// ForgotStart sends a recovery code to email.
func (c *Client) ForgotStart(ctx context.Context, creds Credentials, email string) (*Ack, error) {
	var out Ack
	body := map[string]string{"email": email}
	return &out, c.call(ctx, creds, http.MethodPost, "forgot-start", body, nil, &out)
}

// ForgotVerify exchanges a recovery code for a reset token.
func (c *Client) ForgotVerify(ctx context.Context, creds Credentials, email, code string) (*ForgotVerifyReply, error) {
	var out ForgotVerifyReply
	body := map[string]string{"email": email, "code": code}
	return &out, c.call(ctx, creds, http.MethodPost, "forgot-verify", body, nil, &out)
}

// ForgotReset sets a new password using a reset token.
func (c *Client) ForgotReset(ctx context.Context, creds Credentials, req ForgotResetRequest) (*Ack, error) {
	var out Ack
	return &out, c.call(ctx, creds, http.MethodPost, "forgot-reset", req, nil, &out)
}

// AddCoins credits the caller's balance.
func (c *Client) AddCoins(ctx context.Context, creds Credentials, amount float64, description string) (*Ack, error) {
	var out Ack
	req := CoinsRequest{Amount: amount, Description: description}
	return &out, c.call(ctx, creds, http.MethodPost, "add-coins", req, nil, &out)
}

// SpendCoins debits the caller's balance.
func (c *Client) SpendCoins(ctx context.Context, creds Credentials, amount float64, description string) (*Ack, error) {
	var out Ack
	req := CoinsRequest{Amount: amount, Description: description}
	return &out, c.call(ctx, creds, http.MethodPost, "spend-coins", req, nil, &out)
}

// PaystackInit starts a payment.
func (c *Client) PaystackInit(ctx context.Context, creds Credentials, req PaystackInitRequest) (*PaystackReply, error) {
	var out PaystackReply
	return &out, c.call(ctx, creds, http.MethodPost, "paystack-init", req, nil, &out)
}

// PaystackVerify confirms a payment by reference.
func (c *Client) PaystackVerify(ctx context.Context, creds Credentials, reference string) (*PaystackReply, error) {
	var out PaystackReply
	body := map[string]string{"reference": reference}
	return &out, c.call(ctx, creds, http.MethodPost, "paystack-verify", body, nil, &out)
}

// AnalyzeResume runs the backend analysis, which debits one coin on success.
// A reply that is not ok or carries no feedback is an error with the
// backend's message, or "Failed to examine resume (<status>)".
func (c *Client) AnalyzeResume(ctx context.Context, creds Credentials, req AnalyzeRequest) (json.RawMessage, error) {
	resp, err := c.request(ctx, creds).SetBody(req).Post("analyze-resume.php")
	if err != nil {
		return nil, fmt.Errorf("backend analyze: %w", err)
	}
	var out AnalyzeReply
	_ = json.Unmarshal(resp.Bytes(), &out)
	if resp.IsError() || !out.OK || isEmptyJSON(out.Feedback) {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("Failed to examine resume (%d)", resp.StatusCode())
		}
		return nil, &Error{Status: resp.StatusCode(), Code: "analysis_failed", Message: msg}
	}
	return out.Feedback, nil
}

// Users lists accounts visible to scope, optionally filtered by q.
func (c *Client) Users(ctx context.Context, creds Credentials, scope Scope, q string) ([]User, error) {
	var out UsersReply
	if err := c.call(ctx, creds, http.MethodGet, string(scope)+"/users", nil, query(q), &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// Transactions lists ledger entries visible to scope, optionally filtered by q.
func (c *Client) Transactions(ctx context.Context, creds Credentials, scope Scope, q string) ([]Transaction, error) {
	var out TransactionsReply
	if err := c.call(ctx, creds, http.MethodGet, string(scope)+"/transactions", nil, query(q), &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// SendEmail sends one e-mail. Only the admin scope exposes it.
func (c *Client) SendEmail(ctx context.Context, creds Credentials, req SendEmailRequest) error {
	var out Ack
	return c.call(ctx, creds, http.MethodPost, string(ScopeAdmin)+"/send-email", req, nil, &out)
}

// BlockUser blocks or unblocks a user.
func (c *Client) BlockUser(ctx context.Context, creds Credentials, scope Scope, userID string, block bool) error {
	var out Ack
	path := string(scope) + "/users/" + pathSegment(userID) + "/block"
	return c.call(ctx, creds, http.MethodPost, path, map[string]bool{"block": block}, nil, &out)
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, creds Credentials, scope Scope, userID string) error {
	var out Ack
	return c.call(ctx, creds, http.MethodDelete, string(scope)+"/users/"+pathSegment(userID), nil, nil, &out)
}

func (c *Client) request(ctx context.Context, creds Credentials) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if !creds.Empty() {
		req.SetHeader("Cookie", creds.Cookie)
	}
	return req
}

// call performs a JSON request and decodes a successful reply into out.
func (c *Client) call(ctx context.Context, creds Credentials, method, path string, body any, params map[string]string, out enveloped) error {
	req := c.request(ctx, creds)
	if body != nil {
		req.SetBody(body)
	}
	for k, v := range params {
		req.SetQueryParam(k, v)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return parseError(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Bytes())
	}

	if data := resp.Bytes(); len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("backend %s %s: decode reply: %w", method, path, err)
		}
	}
	out.envelope().SetCookies = resp.Header().Values("Set-Cookie")
	return nil
}

func query(q string) map[string]string {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	return map[string]string{"q": q}
}

func pathSegment(s string) string {
	return url.PathEscape(strings.TrimSpace(s))
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == `""`
}
