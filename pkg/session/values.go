package session

import (
	"encoding/json"
	"maps"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// Get returns a value from the session bag
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// GetString returns a string value, "" when absent or of another type
func (s *Session) GetString(key string) string {
	v, _ := s.values[key].(string)
	return v
}

// GetInt returns an integer value. Numbers decoded from storage arrive as
// float64 or json.Number and are converted.
func (s *Session) GetInt(key string) (int64, bool) {
	switch v := s.values[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// GetBool returns a bool value, false when absent
func (s *Session) GetBool(key string) bool {
	v, _ := s.values[key].(bool)
	return v
}

// Set stores a value in the session bag; persisted by Save.
func (s *Session) Set(key string, value any) {
	s.values[key] = value
}

// Delete removes a value from the session bag
func (s *Session) Delete(key string) {
	delete(s.values, key)
}

// Clear empties the session bag
func (s *Session) Clear() {
	clear(s.values)
}

// Values returns a copy of the session bag
func (s *Session) Values() map[string]any {
	return maps.Clone(s.values)
}

func (s *Session) packValues() ([]byte, error) {
	if len(s.values) == 0 {
		return nil, nil
	}
	return s.m.codec.Marshal(s.values)
}

// unpackValues resets the bag from the record. Undecodable data is dropped.
func (s *Session) unpackValues() {
	s.values = make(map[string]any)
	if s.rec == nil || len(s.rec.Data) == 0 {
		return
	}
	if err := s.m.codec.Unmarshal(s.rec.Data, &s.values); err != nil {
		s.m.logger.Warn("dropping undecodable session data",
			logger.CompanyID(s.rec.CompanyID),
			logger.SessionID(s.rec.ID),
			logger.Error(err),
		)
		s.values = make(map[string]any)
	}
}
