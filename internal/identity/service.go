package identity

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/phone"
)

const pinLength = 4

// Service manages PIN credentials.
type Service struct {
	repo   Repository
	key    []byte
	logger *slog.Logger
}

// NewService creates an identity service. secret keys the PIN digest; it is
// folded down to the BLAKE2b key size when longer.
func NewService(repo Repository, secret string, logger *slog.Logger) *Service {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, key: key, logger: logger}
}

// CreateOrReplacePIN stores the PIN for rawPhone, creating the client on first
// use. A previous PIN stops verifying.
func (s *Service) CreateOrReplacePIN(ctx context.Context, rawPhone, pin string) (Client, error) {
	normalized := phone.Normalize(rawPhone)
	if !phone.IsPlausible(normalized) {
		return Client{}, fmt.Errorf("phone %q: %w", rawPhone, apperr.ErrInvalidInput)
	}
	pin = strings.TrimSpace(pin)
	if !validPIN(pin) {
		return Client{}, fmt.Errorf("pin must be %d digits: %w", pinLength, apperr.ErrInvalidInput)
	}

	digest, err := s.digest(normalized, pin)
	if err != nil {
		return Client{}, err
	}
	client, err := s.repo.UpsertCredential(ctx, normalized, digest)
	if err != nil {
		return Client{}, err
	}
	s.logger.Info("pin stored", slog.Int64("client_id", client.ID))
	return client, nil
}

// Verify returns the client when pin matches the latest stored PIN for
// rawPhone. Every failure is reported as apperr.ErrUnauthorized.
func (s *Service) Verify(ctx context.Context, rawPhone, pin string) (Client, error) {
	normalized := phone.Normalize(rawPhone)
	if normalized == "" {
		return Client{}, apperr.ErrUnauthorized
	}
	client, err := s.repo.FindByPhone(ctx, normalized)
	if err != nil {
		return Client{}, unauthorized(err)
	}
	cred, err := s.repo.FindCredential(ctx, client.ID)
	if err != nil {
		return Client{}, unauthorized(err)
	}

	digest, err := s.digest(normalized, strings.TrimSpace(pin))
	if err != nil {
		return Client{}, err
	}
	if subtle.ConstantTimeCompare([]byte(digest), []byte(cred.PINHash)) != 1 {
		return Client{}, apperr.ErrUnauthorized
	}
	if client.Blocked {
		s.logger.Warn("blocked client login refused", slog.Int64("client_id", client.ID))
		return Client{}, apperr.ErrUnauthorized
	}
	return client, nil
}

// Profile returns the client behind an open session.
func (s *Service) Profile(ctx context.Context, clientID int64) (Client, error) {
	return s.repo.FindByID(ctx, clientID)
}

// SetBlocked blocks or unblocks the client registered under rawPhone.
// Blocked clients can no longer open sessions.
func (s *Service) SetBlocked(ctx context.Context, rawPhone string, blocked bool) (Client, error) {
	normalized := phone.Normalize(rawPhone)
	if normalized == "" {
		return Client{}, fmt.Errorf("phone %q: %w", rawPhone, apperr.ErrInvalidInput)
	}
	client, err := s.repo.FindByPhone(ctx, normalized)
	if err != nil {
		return Client{}, err
	}
	if err := s.repo.SetBlocked(ctx, client.ID, blocked); err != nil {
		return Client{}, err
	}
	client.Blocked = blocked
	s.logger.Info("client block flag changed", slog.Int64("client_id", client.ID), slog.Bool("blocked", blocked))
	return client, nil
}

func (s *Service) digest(normalizedPhone, pin string) (string, error) {
	h, err := blake2b.New256(s.key)
	if err != nil {
		return "", fmt.Errorf("pin digest: %w", err)
	}
	h.Write([]byte(normalizedPhone + ":" + pin))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func unauthorized(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrUnauthorized
	}
	return err
}

func validPIN(pin string) bool {
	if len(pin) != pinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
