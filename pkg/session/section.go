package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// Section is a handle to one named section of a session. The handle is owned
// by the session's section cache; values set through it are what Save flushes.
type Section struct {
	name  string
	mode  Mode
	data  []byte
	codec Codec
}

// Name returns the section name
func (s *Section) Name() string { return s.name }

// Mode returns the mode recorded on first access within the request
func (s *Section) Mode() Mode { return s.mode }

// Exists reports whether the section currently holds a payload
func (s *Section) Exists() bool { return s.data != nil }

// Bytes returns a copy of the raw payload, nil when absent
func (s *Section) Bytes() []byte {
	if s.data == nil {
		return nil
	}
	return bytes.Clone(s.data)
}

// SetBytes replaces the payload. A nil payload deletes the section on save.
func (s *Section) SetBytes(data []byte) {
	if data == nil {
		s.data = nil
		return
	}
	s.data = bytes.Clone(data)
}

// Clear marks the section for deletion on save
func (s *Section) Clear() { s.data = nil }

// Decode unmarshals the payload into dst. Returns ErrSectionEmpty when absent.
func (s *Section) Decode(dst any) error {
	if s.data == nil {
		return ErrSectionEmpty
	}
	if err := s.codec.Unmarshal(s.data, dst); err != nil {
		return fmt.Errorf("session: decode section %q: %w", s.name, err)
	}
	return nil
}

// Encode marshals v as the new payload. A nil v clears the section.
func (s *Section) Encode(v any) error {
	if v == nil {
		s.data = nil
		return nil
	}
	data, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode section %q: %w", s.name, err)
	}
	s.data = data
	return nil
}

// sectionCache keeps the sections touched by one request in first-access order.
type sectionCache struct {
	order  []*Section
	byName map[string]*Section
}

func newSectionCache() *sectionCache {
	return &sectionCache{byName: make(map[string]*Section)}
}

func (c *sectionCache) lookup(name string) (*Section, bool) {
	s, ok := c.byName[name]
	return s, ok
}

func (c *sectionCache) add(s *Section) {
	c.byName[s.name] = s
	c.order = append(c.order, s)
}

func (c *sectionCache) reset() {
	c.order = nil
	c.byName = make(map[string]*Section)
}

func (c *sectionCache) len() int { return len(c.order) }

// get returns the cached handle or fetches the section once. Transient
// sessions never reach the store.
func (c *sectionCache) get(ctx context.Context, store Store, rec *Record, codec Codec, log *slog.Logger, name string, mode Mode) (*Section, error) {
	if !mode.Valid() {
		panic(fmt.Sprintf("session: unreachable section mode %d", int(mode)))
	}

	if s, ok := c.lookup(name); ok {
		if s.mode != mode {
			log.WarnContext(ctx, "named section requested with a different mode, keeping the first one",
				logger.SessionID(rec.ID),
				slog.String("section", name),
				slog.String("first_mode", s.mode.String()),
				slog.String("requested_mode", mode.String()),
			)
		}
		return s, nil
	}

	s := &Section{name: name, mode: mode, codec: codec}
	if !rec.IsTransient() {
		data, err := store.GetNamedSection(ctx, rec.CompanyID, rec.ID, name, mode)
		switch {
		case err == nil:
			s.data = data
		case errors.Is(err, ErrSectionNotFound):
		default:
			return nil, fmt.Errorf("session: get section %q: %w", name, err)
		}
	}

	c.add(s)
	return s, nil
}

// flush writes back every exclusive and shared section in first-access order.
func (c *sectionCache) flush(ctx context.Context, store Store, rec *Record) error {
	for _, s := range c.order {
		if !s.mode.Writable() {
			continue
		}
		if s.data == nil {
			if err := store.DeleteNamedSection(ctx, rec.CompanyID, rec.ID, s.name); err != nil {
				return fmt.Errorf("session: delete section %q: %w", s.name, err)
			}
			continue
		}
		if err := store.UpdateNamedSection(ctx, rec.CompanyID, rec.ID, s.name, s.data); err != nil {
			return fmt.Errorf("session: update section %q: %w", s.name, err)
		}
	}
	return nil
}
