package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainplan/internal/topology"
)

func TestKeyFor(t *testing.T) {
	a := Source{Name: "base.json", Hash: [32]byte{1}}
	b := Source{Name: "override.json", Hash: [32]byte{2}}
	p := Params{
		Build:             "0.1.0",
		SchemaFingerprint: "fp",
		Topology:          topology.Topology{Devices: 8},
		Rules:             []string{"heads-divide-hidden", "min-lr"},
	}
	with := func(edit func(*Params)) Params {
		q := p
		q.Rules = append([]string(nil), p.Rules...)
		edit(&q)
		return q
	}

	k := KeyFor(p, []Source{a, b})
	assert.Equal(t, k, KeyFor(with(func(*Params) {}), []Source{a, b}))
	assert.NotEqual(t, k, KeyFor(p, []Source{b, a}), "order is precedence")
	assert.NotEqual(t, k, KeyFor(with(func(q *Params) { q.Strict = true }), []Source{a, b}))
	assert.NotEqual(t, k, KeyFor(with(func(q *Params) { q.SchemaFingerprint = "fp2" }), []Source{a, b}))
	assert.NotEqual(t, k, KeyFor(with(func(q *Params) { q.Topology.Devices = 16 }), []Source{a, b}))
	assert.NotEqual(t, k, KeyFor(with(func(q *Params) { q.Build = "0.2.0" }), []Source{a, b}))
	assert.NotEqual(t, k, KeyFor(with(func(q *Params) { q.Rules = append(q.Rules, "custom") }), []Source{a, b}))
	assert.NotEqual(t, k, KeyFor(with(func(q *Params) { q.Rules = []string{"min-lr", "heads-divide-hidden"} }), []Source{a, b}))
	// длины в префиксе: границы полей не сдвигаются
	assert.NotEqual(t,
		KeyFor(with(func(q *Params) { q.Rules = []string{"ab", "c"} }), nil),
		KeyFor(with(func(q *Params) { q.Rules = []string{"a", "bc"} }), nil))
	assert.Len(t, k.String(), 64)
}

func TestPutGet(t *testing.T) {
	c, err := OpenAt(t.TempDir())
	require.NoError(t, err)
	key := KeyFor(Params{SchemaFingerprint: "fp", Topology: topology.Topology{Devices: 1}}, nil)

	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, &Entry{SchemaVersion: "2.0", Digest: "abc", Tree: []byte{0x80}}))
	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", got.Digest)
	assert.Equal(t, []byte{0x80}, got.Tree)
	assert.NotZero(t, got.CreatedUnix)

	entries, err := os.ReadDir(filepath.Join(c.Dir(), "plans"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestCorruptEntry(t *testing.T) {
	c, err := OpenAt(t.TempDir())
	require.NoError(t, err)
	key := KeyFor(Params{SchemaFingerprint: "fp", Topology: topology.Topology{Devices: 1}}, nil)
	require.NoError(t, os.MkdirAll(filepath.Dir(c.pathFor(key)), 0o755))
	require.NoError(t, os.WriteFile(c.pathFor(key), []byte{0xc1}, 0o644))

	_, ok, err := c.Get(key)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDropAll(t *testing.T) {
	c, err := OpenAt(filepath.Join(t.TempDir(), "trainplan"))
	require.NoError(t, err)
	key := KeyFor(Params{SchemaFingerprint: "fp", Topology: topology.Topology{Devices: 1}}, nil)
	require.NoError(t, c.Put(key, &Entry{Digest: "abc"}))
	require.NoError(t, c.DropAll())

	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Put(key, &Entry{Digest: "def"}))
}

func TestNilCache(t *testing.T) {
	var c *DiskCache
	assert.NoError(t, c.Put(Key{}, &Entry{}))
	_, ok, err := c.Get(Key{})
	assert.NoError(t, err)
	assert.False(t, ok)
}
