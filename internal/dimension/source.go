package dimension

import (
	"context"
	"fmt"
	"sync"
)

// Default configuration-store keys for the two dimensions.
const (
	RoomsKey = "ROOMS"
	VATKey   = "VAT"
)

// Source exposes the configured entries of both dimensions.
type Source interface {
	Rooms(ctx context.Context) ([]string, error)
	VATs(ctx context.Context) ([]VATEntry, error)
}

// StaticSource serves fixed entries. Used by tests and single-tenant setups
// where the dimensions come straight from the environment.
type StaticSource struct {
	RoomNames  []string
	VATEntries []VATEntry
}

func (s StaticSource) Rooms(context.Context) ([]string, error) {
	if len(s.RoomNames) == 0 {
		return nil, fmt.Errorf("rooms: %w", ErrEmptyDimension)
	}
	return s.RoomNames, nil
}

func (s StaticSource) VATs(context.Context) ([]VATEntry, error) {
	if len(s.VATEntries) == 0 {
		return nil, fmt.Errorf("vats: %w", ErrEmptyDimension)
	}
	return s.VATEntries, nil
}

// SettingsReader reads a raw configuration value by key.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, error)
}

// SettingsSource loads dimension entries from the configuration store.
// Dimensions change rarely, so the parsed result is memoised after the
// first successful load until Invalidate is called.
type SettingsSource struct {
	Settings SettingsReader

	mu    sync.Mutex
	rooms []string
	vats  []VATEntry
}

func (s *SettingsSource) Rooms(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms != nil {
		return s.rooms, nil
	}
	raw, err := s.Settings.Get(ctx, RoomsKey)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	rooms, err := ParseRooms(raw)
	if err != nil {
		return nil, err
	}
	s.rooms = rooms
	return rooms, nil
}

// Invalidate drops the memoised entries so the next read hits the
// configuration store again. Called after an admin settings update.
func (s *SettingsSource) Invalidate() {
	s.mu.Lock()
	s.rooms = nil
	s.vats = nil
	s.mu.Unlock()
}

func (s *SettingsSource) VATs(ctx context.Context) ([]VATEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vats != nil {
		return s.vats, nil
	}
	raw, err := s.Settings.Get(ctx, VATKey)
	if err != nil {
		return nil, fmt.Errorf("load vats: %w", err)
	}
	vats, err := ParseVATs(raw)
	if err != nil {
		return nil, err
	}
	s.vats = vats
	return vats, nil
}
