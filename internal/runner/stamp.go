package runner

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"uitest/internal/suite"
)

// Текущая версия схемы: увеличивать при изменении формата Stamp.
const stampSchemaVersion uint16 = 1

// Digest is a SHA-256 over every input of a case.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Stamp records that a case passed with the given inputs.
type Stamp struct {
	Schema uint16
	ID     string
	Key    Digest
	Passed time.Time
}

// StampCache keeps one stamp per case under the build directory. A case whose
// inputs hash to the stored key is skipped. Thread-safe.
type StampCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenStampCache creates the stamp directory under buildDir.
func OpenStampCache(buildDir string) (*StampCache, error) {
	dir := filepath.Join(buildDir, "stamps")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &StampCache{dir: dir}, nil
}

func (c *StampCache) pathFor(id string) string {
	sum := sha256.Sum256([]byte(id))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8])+".mp")
}

// Put stores a pass stamp for id.
func (c *StampCache) Put(id string, key Digest) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(id)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	stamp := Stamp{Schema: stampSchemaVersion, ID: id, Key: key, Passed: time.Now().UTC()}
	if err := msgpack.NewEncoder(f).Encode(&stamp); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads the stamp of id.
func (c *StampCache) Get(id string) (*Stamp, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var stamp Stamp
	if err := msgpack.NewDecoder(f).Decode(&stamp); err != nil {
		return nil, false, fmt.Errorf("decode stamp for %s: %w", id, err)
	}
	return &stamp, true, nil
}

// Fresh reports whether id passed last time with exactly these inputs.
// Stamps from another schema or another case (hash collision) are stale.
func (c *StampCache) Fresh(id string, key Digest) (bool, error) {
	stamp, ok, err := c.Get(id)
	if err != nil || !ok {
		return false, err
	}
	return stamp.Schema == stampSchemaVersion && stamp.ID == id && stamp.Key == key, nil
}

// Drop removes the stamp of id, if any.
func (c *StampCache) Drop(id string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.pathFor(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// DropAll invalidates every stamp.
func (c *StampCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.MkdirAll(c.dir, 0o755)
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// StampKey hashes everything that can change the outcome of tc: the source,
// its aux files, its fixtures, and the compiler fingerprint.
func StampKey(tc *suite.TestCase, fingerprint string) Digest {
	h := sha256.New()
	write := func(tag string, data []byte) {
		// длина перед данными, чтобы границы полей не склеивались
		fmt.Fprintf(h, "%s:%d:", tag, len(data))
		_, _ = h.Write(data)
	}
	write("compiler", []byte(fingerprint))
	write("source", tc.Source)

	aux := tc.AuxPaths()
	sort.Strings(aux)
	for _, p := range aux {
		data, err := os.ReadFile(p)
		if err != nil {
			write("aux-missing", []byte(p))
			continue
		}
		write("aux", data)
	}
	for _, f := range []suite.Fixture{tc.Stderr, tc.Fixed, tc.Coverage} {
		if !f.Exists {
			write("no-fixture", nil)
			continue
		}
		write("fixture", []byte(f.Text))
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Fingerprint identifies a compiler build and the run settings that affect
// results. The binary's size and modification time stand in for its hash.
func Fingerprint(path string, flags []string, extra ...string) string {
	var b strings.Builder
	b.WriteString(path)
	if st, err := os.Stat(path); err == nil {
		fmt.Fprintf(&b, "|%d|%d", st.Size(), st.ModTime().UnixNano())
	}
	for _, f := range flags {
		b.WriteString("|")
		b.WriteString(f)
	}
	for _, e := range extra {
		b.WriteString("|")
		b.WriteString(e)
	}
	return b.String()
}
