// Package cache keeps accepted plans on disk so unchanged inputs are not
// resolved twice.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"trainplan/internal/topology"
)

// Current payload version; bump when Entry changes shape.
const payloadVersion uint16 = 1

// Key identifies one resolution request.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// Source is one input of a request as seen by the cache.
type Source struct {
	Name string
	Hash [32]byte
}

// Params are the non-source inputs of a resolution.
type Params struct {
	Build             string // binary version; rules and derivations change with it
	SchemaFingerprint string
	Topology          topology.Topology
	Strict            bool
	Rules             []string // registered rule names, in order
}

// KeyFor hashes everything that can change the outcome of a resolution.
// Source order matters because it is merge precedence.
func KeyFor(p Params, sources []Source) Key {
	h := sha256.New()
	fmt.Fprintf(h, "v%d\nschema=%s\ndevices=%d\nstrict=%t\n", payloadVersion, p.SchemaFingerprint, p.Topology.Devices, p.Strict)
	var n [8]byte
	field := func(s string) {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	field(p.Build)
	binary.BigEndian.PutUint64(n[:], uint64(len(p.Rules)))
	h.Write(n[:])
	for _, name := range p.Rules {
		field(name)
	}
	for _, s := range sources {
		field(s.Name)
		h.Write(s.Hash[:])
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Entry is a cached accepted plan.
type Entry struct {
	Schema        uint16
	SchemaVersion string
	Digest        string
	Tree          []byte // msgpack-encoded plan tree
	CreatedUnix   int64
}

// DiskCache stores entries under $XDG_CACHE_HOME/<app>/plans. Safe for
// concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Open returns the cache at the standard location for app.
func Open(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenAt(filepath.Join(base, app))
}

// OpenAt returns a cache rooted at dir.
func OpenAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Key) string {
	return filepath.Join(c.dir, "plans", key.String()+".mp")
}

// Put writes e atomically (temp file + rename).
func (c *DiskCache) Put(key Key, e *Entry) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	payload := *e
	payload.Schema = payloadVersion
	if payload.CreatedUnix == 0 {
		payload.CreatedUnix = time.Now().Unix()
	}
	if err = msgpack.NewEncoder(f).Encode(&payload); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads the entry for key. Entries of another payload version are
// treated as misses.
func (c *DiskCache) Get(key Key) (*Entry, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var e Entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	if e.Schema != payloadVersion {
		return nil, false, nil
	}
	return &e, true, nil
}

// DropAll removes every entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
