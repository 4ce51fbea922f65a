package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/session"
)

type wizard struct {
	Step int    `json:"step"`
	Name string `json:"name"`
}

func section(t *testing.T, s *session.Session, name string, mode session.Mode) *session.Section {
	t.Helper()
	sec, err := s.Section(context.Background(), name, mode)
	require.NoError(t, err)
	return sec
}

func TestSection_ModeLaws(t *testing.T) {
	for _, mode := range []session.Mode{session.ModeExclusive, session.ModeShared} {
		t.Run(mode.String()+" writes are visible to the next request", func(t *testing.T) {
			f := newFixture(t, nil)
			c := f.client(t, 1)

			c.do(func(s *session.Session) {
				sec := section(t, s, "wizard", mode)
				assert.False(t, sec.Exists())
				require.NoError(t, sec.Encode(wizard{Step: 2, Name: "billing"}))
			})

			c.do(func(s *session.Session) {
				var got wizard
				require.NoError(t, section(t, s, "wizard", session.ModeReadOnly).Decode(&got))
				assert.Equal(t, wizard{Step: 2, Name: "billing"}, got)
			})
		})

		t.Run(mode.String()+" nil payload deletes the section", func(t *testing.T) {
			f := newFixture(t, nil)
			c := f.client(t, 1)

			c.do(func(s *session.Session) { section(t, s, "wizard", mode).SetBytes([]byte(`{"step":1}`)) })
			c.do(func(s *session.Session) {
				sec := section(t, s, "wizard", mode)
				require.True(t, sec.Exists())
				sec.Clear()
			})
			c.do(func(s *session.Session) {
				sec := section(t, s, "wizard", session.ModeReadOnly)
				assert.False(t, sec.Exists())
				assert.Nil(t, sec.Bytes())
				assert.ErrorIs(t, sec.Decode(&wizard{}), session.ErrSectionEmpty)
			})
		})
	}

	t.Run("read only writes are never persisted", func(t *testing.T) {
		f := newFixture(t, nil)
		c := f.client(t, 1)

		c.do(func(s *session.Session) { section(t, s, "prefs", session.ModeShared).SetBytes([]byte(`"dark"`)) })
		c.do(func(s *session.Session) {
			sec := section(t, s, "prefs", session.ModeReadOnly)
			assert.Equal(t, []byte(`"dark"`), sec.Bytes())
			sec.SetBytes([]byte(`"light"`))
		})
		c.do(func(s *session.Session) {
			sec := section(t, s, "other", session.ModeReadOnly)
			sec.SetBytes([]byte(`"never"`))
		})
		c.do(func(s *session.Session) {
			assert.Equal(t, []byte(`"dark"`), section(t, s, "prefs", session.ModeReadOnly).Bytes())
			assert.False(t, section(t, s, "other", session.ModeReadOnly).Exists())
		})
	})

	t.Run("sections are private to their session", func(t *testing.T) {
		f := newFixture(t, nil)
		a, b := f.client(t, 1), f.client(t, 1)

		a.do(func(s *session.Session) { section(t, s, "cart", session.ModeExclusive).SetBytes([]byte(`[1]`)) })
		b.do(func(s *session.Session) {
			assert.False(t, section(t, s, "cart", session.ModeReadOnly).Exists())
		})
	})
}

func TestSection_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("second access returns the cached handle without the store", func(t *testing.T) {
		store := &recordingStore{MemoryStore: session.NewMemoryStore()}
		f := newFixture(t, store)
		c := f.client(t, 1)
		c.do(nil)
		store.Reset()

		c.do(func(s *session.Session) {
			first := section(t, s, "cart", session.ModeExclusive)
			first.SetBytes([]byte(`[1,2]`))
			second := section(t, s, "cart", session.ModeExclusive)
			assert.Same(t, first, second)
			assert.Equal(t, []byte(`[1,2]`), second.Bytes())
		})
		assert.Equal(t, []string{"get:cart:exclusive", "update:cart"}, store.Calls())
	})

	t.Run("first access mode wins", func(t *testing.T) {
		f := newFixture(t, nil)
		c := f.client(t, 1)

		c.do(func(s *session.Session) {
			sec := section(t, s, "cart", session.ModeReadOnly)
			again := section(t, s, "cart", session.ModeExclusive)
			assert.Equal(t, session.ModeReadOnly, again.Mode())
			sec.SetBytes([]byte(`[1]`))
		})
		c.do(func(s *session.Session) {
			assert.False(t, section(t, s, "cart", session.ModeReadOnly).Exists())
		})
	})

	t.Run("flush follows first access order", func(t *testing.T) {
		store := &recordingStore{MemoryStore: session.NewMemoryStore()}
		f := newFixture(t, store)
		c := f.client(t, 1)
		c.do(nil)
		store.Reset()

		c.do(func(s *session.Session) {
			section(t, s, "b", session.ModeShared).SetBytes([]byte(`1`))
			section(t, s, "ro", session.ModeReadOnly).SetBytes([]byte(`2`))
			section(t, s, "a", session.ModeExclusive)
			section(t, s, "b", session.ModeShared)
		})
		assert.Equal(t, []string{
			"get:b:shared",
			"get:ro:read_only",
			"get:a:exclusive",
			"update:b",
			"delete:a",
		}, store.Calls())
	})

	t.Run("store errors propagate", func(t *testing.T) {
		store := &failingStore{MemoryStore: session.NewMemoryStore()}
		f := newFixture(t, store)
		c := f.client(t, 1)
		c.do(nil)
		store.failSection = errStoreDown

		c.do(func(s *session.Session) {
			_, err := s.Section(ctx, "cart", session.ModeShared)
			assert.ErrorIs(t, err, errStoreDown)
		})
	})

	t.Run("unknown mode panics", func(t *testing.T) {
		f := newFixture(t, nil)
		c := f.client(t, 1)
		c.do(func(s *session.Session) {
			assert.Panics(t, func() { _, _ = s.Section(ctx, "x", session.Mode(42)) })
		})
	})
}

func TestSection_Bytes(t *testing.T) {
	f := newFixture(t, nil)
	c := f.client(t, 1)
	c.do(func(s *session.Session) {
		sec := section(t, s, "raw", session.ModeExclusive)
		assert.Equal(t, "raw", sec.Name())

		payload := []byte("abc")
		sec.SetBytes(payload)
		payload[0] = 'x'
		assert.Equal(t, []byte("abc"), sec.Bytes(), "handle keeps its own copy")

		out := sec.Bytes()
		out[0] = 'y'
		assert.Equal(t, []byte("abc"), sec.Bytes())

		require.NoError(t, sec.Encode(nil))
		assert.False(t, sec.Exists())
	})
}

func TestMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want session.Mode
	}{
		{"exclusive", session.ModeExclusive},
		{"SHARED", session.ModeShared},
		{"read_only", session.ModeReadOnly},
		{"readonly", session.ModeReadOnly},
	} {
		got, err := session.ParseMode(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := session.ParseMode("locked")
	assert.Error(t, err)

	assert.True(t, session.ModeShared.Writable())
	assert.False(t, session.ModeReadOnly.Writable())
	assert.False(t, session.Mode(0).Valid())
	assert.Panics(t, func() { session.Mode(9).Writable() })
	assert.Equal(t, "mode(9)", session.Mode(9).String())
}
