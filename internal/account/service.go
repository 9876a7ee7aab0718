// Package account proxies sign-in, profile, coin and payment calls to the
// backend and keeps the session cache consistent with their effects.
package account

import (
	"context"
	"strings"

	"resucheck/internal/backend"
)

// Backend is the part of the backend client the account routes use.
type Backend interface {
	Login(ctx context.Context, creds backend.Credentials, req backend.LoginRequest) (*backend.UserReply, error)
	Register(ctx context.Context, creds backend.Credentials, req backend.RegisterRequest) (*backend.UserReply, error)
	Logout(ctx context.Context, creds backend.Credentials) (*backend.Ack, error)
	ProfileGet(ctx context.Context, creds backend.Credentials) (*backend.UserReply, error)
	ProfileUpdate(ctx context.Context, creds backend.Credentials, req backend.ProfileUpdate) (*backend.UserReply, error)
	ForgotStart(ctx context.Context, creds backend.Credentials, email string) (*backend.Ack, error)
	ForgotVerify(ctx context.Context, creds backend.Credentials, email, code string) (*backend.ForgotVerifyReply, error)
	ForgotReset(ctx context.Context, creds backend.Credentials, req backend.ForgotResetRequest) (*backend.Ack, error)
	AddCoins(ctx context.Context, creds backend.Credentials, amount float64, description string) (*backend.Ack, error)
	SpendCoins(ctx context.Context, creds backend.Credentials, amount float64, description string) (*backend.Ack, error)
	PaystackInit(ctx context.Context, creds backend.Credentials, req backend.PaystackInitRequest) (*backend.PaystackReply, error)
	PaystackVerify(ctx context.Context, creds backend.Credentials, reference string) (*backend.PaystackReply, error)
}

// SessionInvalidator drops cached sessions.
type SessionInvalidator interface {
	Invalidate(creds backend.Credentials)
}

// Service forwards account calls and invalidates cached sessions whenever
// identity or balance may have changed.
type Service struct {
	Backend  Backend
	Sessions SessionInvalidator
}

// NewService constructs a Service.
func NewService(b Backend, sessions SessionInvalidator) *Service {
	return &Service{Backend: b, Sessions: sessions}
}

func (s *Service) invalidate(creds backend.Credentials) {
	if s.Sessions != nil && !creds.Empty() {
		s.Sessions.Invalidate(creds)
	}
}

func (s *Service) Login(ctx context.Context, creds backend.Credentials, req backend.LoginRequest) (*backend.UserReply, error) {
	req.Email = strings.TrimSpace(req.Email)
	s.invalidate(creds)
	return s.Backend.Login(ctx, creds, req)
}

func (s *Service) Register(ctx context.Context, creds backend.Credentials, req backend.RegisterRequest) (*backend.UserReply, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	return s.Backend.Register(ctx, creds, req)
}

// Logout ends the backend session. The cached session is dropped even when
// the backend call fails.
func (s *Service) Logout(ctx context.Context, creds backend.Credentials) (*backend.Ack, error) {
	defer s.invalidate(creds)
	return s.Backend.Logout(ctx, creds)
}

func (s *Service) Profile(ctx context.Context, creds backend.Credentials) (*backend.UserReply, error) {
	return s.Backend.ProfileGet(ctx, creds)
}

func (s *Service) UpdateProfile(ctx context.Context, creds backend.Credentials, req backend.ProfileUpdate) (*backend.UserReply, error) {
	reply, err := s.Backend.ProfileUpdate(ctx, creds, req)
	if err == nil {
		s.invalidate(creds)
	}
	return reply, err
}

func (s *Service) ForgotStart(ctx context.Context, creds backend.Credentials, email string) (*backend.Ack, error) {
	return s.Backend.ForgotStart(ctx, creds, strings.TrimSpace(email))
}

func (s *Service) ForgotVerify(ctx context.Context, creds backend.Credentials, email, code string) (*backend.ForgotVerifyReply, error) {
	return s.Backend.ForgotVerify(ctx, creds, strings.TrimSpace(email), strings.TrimSpace(code))
}

func (s *Service) ForgotReset(ctx context.Context, creds backend.Credentials, req backend.ForgotResetRequest) (*backend.Ack, error) {
	req.Email = strings.TrimSpace(req.Email)
	return s.Backend.ForgotReset(ctx, creds, req)
}

func (s *Service) AddCoins(ctx context.Context, creds backend.Credentials, req backend.CoinsRequest) (*backend.Ack, error) {
	reply, err := s.Backend.AddCoins(ctx, creds, req.Amount, req.Description)
	if err == nil {
		s.invalidate(creds)
	}
	return reply, err
}

func (s *Service) SpendCoins(ctx context.Context, creds backend.Credentials, req backend.CoinsRequest) (*backend.Ack, error) {
	reply, err := s.Backend.SpendCoins(ctx, creds, req.Amount, req.Description)
	if err == nil {
		s.invalidate(creds)
	}
	return reply, err
}

func (s *Service) PaystackInit(ctx context.Context, creds backend.Credentials, req backend.PaystackInitRequest) (*backend.PaystackReply, error) {
	req.Email = strings.TrimSpace(req.Email)
	return s.Backend.PaystackInit(ctx, creds, req)
}

// PaystackVerify confirms a payment; a verified payment credits coins.
func (s *Service) PaystackVerify(ctx context.Context, creds backend.Credentials, reference string) (*backend.PaystackReply, error) {
	reply, err := s.Backend.PaystackVerify(ctx, creds, strings.TrimSpace(reference))
	if err == nil {
		s.invalidate(creds)
	}
	return reply, err
}
