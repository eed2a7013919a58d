// Package addresses manages the saved delivery locations of a client.
package addresses

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
)

// Service validates address book operations.
type Service struct {
	repo Repository
}

// NewService builds an address service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the client's addresses, newest first.
func (s *Service) List(ctx context.Context, clientID int64) ([]Address, error) {
	return s.repo.List(ctx, clientID)
}

// Create saves a new address for clientID.
func (s *Service) Create(ctx context.Context, clientID int64, alias, address string, lat, lon *float64) (Address, error) {
	address = strings.TrimSpace(address)
	if address == "" || lat == nil || lon == nil {
		return Address{}, fmt.Errorf("address and coordinates are required: %w", apperr.ErrInvalidInput)
	}
	alias = strings.TrimSpace(alias)
	if err := checkLengths(alias, address); err != nil {
		return Address{}, err
	}
	return s.repo.Create(ctx, Address{
		ClientID: clientID,
		Alias:    alias,
		Address:  address,
		Lat:      *lat,
		Lon:      *lon,
	})
}

// Update edits one of the client's addresses.
func (s *Service) Update(ctx context.Context, clientID int64, upd Update) error {
	if upd.ID <= 0 {
		return fmt.Errorf("address id is required: %w", apperr.ErrInvalidInput)
	}
	upd.Alias = strings.TrimSpace(upd.Alias)
	upd.Address = strings.TrimSpace(upd.Address)
	if err := checkLengths(upd.Alias, upd.Address); err != nil {
		return err
	}
	return s.repo.Update(ctx, clientID, upd)
}

// Delete removes one of the client's addresses.
func (s *Service) Delete(ctx context.Context, clientID, id int64) error {
	if id <= 0 {
		return fmt.Errorf("address id is required: %w", apperr.ErrInvalidInput)
	}
	return s.repo.Delete(ctx, clientID, id)
}

func checkLengths(alias, address string) error {
	if utf8.RuneCountInString(alias) > maxAliasLen || utf8.RuneCountInString(address) > maxAddressLen {
		return fmt.Errorf("alias or address too long: %w", apperr.ErrInvalidInput)
	}
	return nil
}
