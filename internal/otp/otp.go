// Package otp issues and checks short-lived one-time codes for phone and
// email verification. Codes are single-use: a successful check deletes the
// stored record.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	CodeTTL    = 5 * time.Minute
	CodeDigits = 6
)

var (
	ErrNotFound = errors.New("otp: no pending code")
	ErrExpired  = errors.New("otp: code expired")
	ErrMismatch = errors.New("otp: code mismatch")
	ErrDispatch = errors.New("otp: dispatch failed")
)

// Sender delivers a code over an external channel (SMS, email).
type Sender interface {
	Send(ctx context.Context, identifier, code string) error
}

type Service struct {
	Store  Store
	Sender Sender
	TTL    time.Duration
}

func NewService(store Store, sender Sender) *Service {
	return &Service{Store: store, Sender: sender, TTL: CodeTTL}
}

func (s *Service) Request(ctx context.Context, identifier string) error {
	code, err := GenerateCode(CodeDigits)
	if err != nil {
		return err
	}
	if err := s.Store.Put(ctx, identifier, code, s.TTL); err != nil {
		return err
	}
	if err := s.Sender.Send(ctx, identifier, code); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	return nil
}

func (s *Service) Verify(ctx context.Context, identifier, code string) error {
	stored, err := s.Store.Get(ctx, identifier)
	if err != nil {
		return err
	}
	if stored != code {
		return ErrMismatch
	}
	return s.Store.Delete(ctx, identifier)
}

func GenerateCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("otp: generate code failed: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
