package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bidmaster/bidmaster/config"
)

// OTPStore is an explicit, injected one-time-code store keyed by canonical
// phone number with per-entry expiry. It replaces module-level map state so
// a shared backend can be swapped in behind the same surface.
type OTPStore struct {
	cache  *gocache.Cache
	digits int
}

func NewOTPStore(cfg config.OTPConfig) *OTPStore {
	digits := cfg.Digits
	if digits <= 0 {
		digits = 6
	}
	return &OTPStore{
		cache:  gocache.New(cfg.TTL, cfg.TTL),
		digits: digits,
	}
}

// Issue generates a fresh random code for the phone, replacing any
// outstanding one, and stores it with the configured TTL.
func (s *OTPStore) Issue(phone string) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < s.digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%0*d", s.digits, n)

	s.cache.Set(phone, code, gocache.DefaultExpiration)
	return code, nil
}

// Verify checks the code and consumes it on success. Expired, absent and
// mismatched codes are indistinguishable to the caller.
func (s *OTPStore) Verify(phone, code string) bool {
	stored, found := s.cache.Get(phone)
	if !found {
		return false
	}
	if stored.(string) != code {
		return false
	}
	s.cache.Delete(phone)
	return true
}

// SMSSender delivers the one-time code out of band.
type SMSSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogSMSSender logs the code instead of sending an SMS. The development
// flow also returns the code in the API response for auto-fill, so this is
// the default sender outside production.
type LogSMSSender struct {
	Logger *slog.Logger
}

var _ SMSSender = (*LogSMSSender)(nil)

func (s *LogSMSSender) SendCode(_ context.Context, phone, code string) error {
	s.Logger.Info("OTP issued", slog.String("phone", phone), slog.String("code", code))
	return nil
}
