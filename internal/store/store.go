// Package store persists zone settings to the human-readable
// configuration file.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

const DefaultPath = "grow-conf.js"

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the zone configurations. Unknown fields, settings that do not
// match their zone kind and duplicate zones are all rejected.
func (s *Store) Load() ([]model.ZoneConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrPersistence, s.path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfgs []model.ZoneConfig
	if err := dec.Decode(&cfgs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", model.ErrParse, s.path, err)
	}
	if err := Validate(cfgs); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// LoadOrDefault falls back to the built-in configuration when the file
// is missing or invalid.
func (s *Store) LoadOrDefault() []model.ZoneConfig {
	cfgs, err := s.Load()
	if err != nil {
		ev := log.Warn()
		if errors.Is(err, os.ErrNotExist) {
			ev = log.Info()
		}
		ev.Err(err).Str("path", s.path).Msg("Using default zone configuration")
		return Default()
	}
	return cfgs
}

func (s *Store) Save(cfgs []model.ZoneConfig) error {
	if err := Validate(cfgs); err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfgs); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: encode: %w", model.ErrPersistence, err)
	}
	file.Sync()
	file.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	log.Info().Str("path", s.path).Int("zones", len(cfgs)).Msg("Zone configuration saved")
	return nil
}

func Validate(cfgs []model.ZoneConfig) error {
	seen := make(map[model.Kind]map[uint8]bool)
	for _, c := range cfgs {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Kind] == nil {
			seen[c.Kind] = make(map[uint8]bool)
		}
		if seen[c.Kind][c.ID] {
			return fmt.Errorf("%w: duplicate zone %s %d", model.ErrParse, c.Kind, c.ID)
		}
		seen[c.Kind][c.ID] = true
	}
	return nil
}
