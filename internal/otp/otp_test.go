package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	identifier string
	code       string
	err        error
}

func (s *recordingSender) Send(_ context.Context, identifier, code string) error {
	if s.err != nil {
		return s.err
	}
	s.identifier = identifier
	s.code = code
	return nil
}

func TestRequestAndVerify(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(NewMemoryStore(), sender)
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "+79001234567"))
	require.Equal(t, "+79001234567", sender.identifier)
	require.Len(t, sender.code, CodeDigits)

	require.NoError(t, svc.Verify(ctx, "+79001234567", sender.code))

	// Single use: the same code must not verify twice.
	err := svc.Verify(ctx, "+79001234567", sender.code)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyMismatch(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(NewMemoryStore(), sender)
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, "user@example.com"))

	wrong := "000000"
	if sender.code == wrong {
		wrong = "000001"
	}
	require.ErrorIs(t, svc.Verify(ctx, "user@example.com", wrong), ErrMismatch)

	// A mismatch does not burn the code.
	require.NoError(t, svc.Verify(ctx, "user@example.com", sender.code))
}

func TestVerifyExpired(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &recordingSender{})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "+79001234567", "123456", -time.Second))

	// Correct code, expired record: must fail with the expiry error.
	require.ErrorIs(t, svc.Verify(ctx, "+79001234567", "123456"), ErrExpired)

	// The expired record is gone afterwards.
	require.ErrorIs(t, svc.Verify(ctx, "+79001234567", "123456"), ErrNotFound)
}

func TestVerifyNoPendingCode(t *testing.T) {
	svc := NewService(NewMemoryStore(), &recordingSender{})
	require.ErrorIs(t, svc.Verify(context.Background(), "+79000000000", "123456"), ErrNotFound)
}

func TestRequestDispatchError(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	svc := NewService(NewMemoryStore(), sender)

	err := svc.Request(context.Background(), "+79001234567")
	require.ErrorIs(t, err, ErrDispatch)
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(CodeDigits)
	require.NoError(t, err)
	require.Len(t, code, CodeDigits)
	for _, r := range code {
		require.True(t, r >= '0' && r <= '9')
	}
}
