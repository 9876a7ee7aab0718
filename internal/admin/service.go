// Package admin serves the admin console: user and transaction search,
// blocking, deletion and e-mail broadcast, all backed by the backend's
// admin and super_admin route families.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"resucheck/internal/backend"
	"resucheck/internal/shared/telemetry"
)

// BroadcastAll addresses an e-mail to every user.
const BroadcastAll = "all"

const defaultConcurrency = 4

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoRecipients is returned when a broadcast finds no user e-mails.
	ErrNoRecipients = errors.New("no recipients")
)

// Backend is the part of the backend client the console uses.
type Backend interface {
	Users(ctx context.Context, creds backend.Credentials, scope backend.Scope, q string) ([]backend.User, error)
	Transactions(ctx context.Context, creds backend.Credentials, scope backend.Scope, q string) ([]backend.Transaction, error)
	SendEmail(ctx context.Context, creds backend.Credentials, req backend.SendEmailRequest) error
	BlockUser(ctx context.Context, creds backend.Credentials, scope backend.Scope, userID string, block bool) error
	DeleteUser(ctx context.Context, creds backend.Credentials, scope backend.Scope, userID string) error
}

// Service runs admin operations on behalf of a signed-in admin.
type Service struct {
	Backend Backend
	// Concurrency bounds parallel sends during a broadcast.
	Concurrency int
}

// NewService constructs a Service.
func NewService(b Backend) *Service {
	return &Service{Backend: b, Concurrency: defaultConcurrency}
}

func (s *Service) Users(ctx context.Context, creds backend.Credentials, scope backend.Scope, q string) ([]backend.User, error) {
	users, err := s.Backend.Users(ctx, creds, scope, q)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []backend.User{}
	}
	return users, nil
}

// Transactions asks the backend for matching entries and filters them again
// locally, since not every backend deployment honours q.
func (s *Service) Transactions(ctx context.Context, creds backend.Credentials, scope backend.Scope, q string) ([]backend.Transaction, error) {
	txs, err := s.Backend.Transactions(ctx, creds, scope, q)
	if err != nil {
		return nil, err
	}
	return FilterTransactions(txs, q), nil
}

// FilterTransactions keeps entries whose phone, receipt number, user name or
// user e-mail contains q, ignoring case. A blank q keeps everything.
func FilterTransactions(txs []backend.Transaction, q string) []backend.Transaction {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]backend.Transaction, 0, len(txs))
	for _, tx := range txs {
		if q == "" || transactionMatches(tx, q) {
			out = append(out, tx)
		}
	}
	return out
}

func transactionMatches(tx backend.Transaction, q string) bool {
	fields := []*string{tx.Phone, tx.ReceiptNumber}
	if tx.User != nil {
		fields = append(fields, &tx.User.Name, &tx.User.Email)
	}
	for _, f := range fields {
		if f != nil && strings.Contains(strings.ToLower(*f), q) {
			return true
		}
	}
	return false
}

func (s *Service) Block(ctx context.Context, creds backend.Credentials, scope backend.Scope, userID string, block bool) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	return s.Backend.BlockUser(ctx, creds, scope, userID, block)
}

func (s *Service) Delete(ctx context.Context, creds backend.Credentials, scope backend.Scope, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	return s.Backend.DeleteUser(ctx, creds, scope, userID)
}

// EmailInput is one console e-mail. To is an address or BroadcastAll.
type EmailInput struct {
	To      string `json:"to"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// SendResult counts delivered and failed messages.
type SendResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// SendEmail sends one message, or one per user when To is BroadcastAll.
// A broadcast keeps going past individual failures and reports them.
func (s *Service) SendEmail(ctx context.Context, creds backend.Credentials, in EmailInput) (SendResult, error) {
	in.To = strings.TrimSpace(in.To)
	if strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Message) == "" {
		return SendResult{}, fmt.Errorf("%w: subject and message are required", ErrInvalidInput)
	}
	if in.To == "" {
		in.To = BroadcastAll
	}
	if in.To != BroadcastAll {
		if err := s.Backend.SendEmail(ctx, creds, backend.SendEmailRequest{To: in.To, Subject: in.Subject, Message: in.Message}); err != nil {
			return SendResult{Failed: 1}, err
		}
		return SendResult{Sent: 1}, nil
	}

	users, err := s.Backend.Users(ctx, creds, backend.ScopeAdmin, "")
	if err != nil {
		return SendResult{}, err
	}
	recipients := uniqueEmails(users)
	if len(recipients) == 0 {
		return SendResult{}, ErrNoRecipients
	}

	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	var (
		mu  sync.Mutex
		res SendResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, to := range recipients {
		g.Go(func() error {
			err := s.Backend.SendEmail(gctx, creds, backend.SendEmailRequest{To: to, Subject: in.Subject, Message: in.Message})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, to+": "+err.Error())
				return nil
			}
			res.Sent++
			return nil
		})
	}
	_ = g.Wait()

	telemetry.Info("admin.broadcast", map[string]any{
		"recipients": len(recipients),
		"sent":       res.Sent,
		"failed":     res.Failed,
	})
	return res, nil
}

func uniqueEmails(users []backend.User) []string {
	seen := make(map[string]struct{}, len(users))
	out := make([]string, 0, len(users))
	for _, u := range users {
		email := strings.TrimSpace(u.Email)
		key := strings.ToLower(email)
		if email == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, email)
	}
	return out
}
