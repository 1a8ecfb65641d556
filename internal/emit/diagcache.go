package emit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"ember/internal/diag"
	"ember/internal/source"
)

const diagCacheSchemaVersion uint16 = 1

// Digest keys the diagnostics cache: sha-256 of the bound program
// payload a module was compiled from.
type Digest [32]byte

// DigestBytes hashes a serialized program.
func DigestBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

// DiagCache persists per-module diagnostics on disk so a check run
// over an unchanged module replays them without recompiling.
// Thread-safe for concurrent access.
type DiagCache struct {
	mu  sync.RWMutex
	dir string
}

// diagPayload is the cached record for one module.
type diagPayload struct {
	Schema      uint16
	Module      string
	Diagnostics []cachedDiag
}

type cachedDiag struct {
	Severity uint8
	Code     uint16
	Message  string
	File     uint32
	Start    uint32
	End      uint32
}

// OpenDiagCache initializes the cache at the standard location.
func OpenDiagCache(app string) (*DiagCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app, "diag")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiagCache{dir: dir}, nil
}

// OpenDiagCacheAt initializes the cache at an explicit directory.
// Tests use it to avoid touching the user cache.
func OpenDiagCacheAt(dir string) (*DiagCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiagCache{dir: dir}, nil
}

func (c *DiagCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, hex.EncodeToString(key[:])+".mp")
}

// Put stores a module's diagnostics under its content digest.
func (c *DiagCache) Put(key Digest, module string, items []diag.Diagnostic) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := diagPayload{Schema: diagCacheSchemaVersion, Module: module}
	for _, d := range items {
		payload.Diagnostics = append(payload.Diagnostics, cachedDiag{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Message:  d.Message,
			File:     uint32(d.Primary.File),
			Start:    d.Primary.Start,
			End:      d.Primary.End,
		})
	}
	data, err := msgpack.Marshal(&payload)
	if err != nil {
		return err
	}
	p := c.pathFor(key)
	f, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Get replays a module's cached diagnostics into bag. Returns false on
// a miss or a schema mismatch; a mismatch is a miss, not an error.
func (c *DiagCache) Get(key Digest, bag *diag.Bag) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	var payload diagPayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return false, err
	}
	if payload.Schema != diagCacheSchemaVersion {
		return false, nil
	}
	for _, d := range payload.Diagnostics {
		bag.Add(diag.Diagnostic{
			Severity: diag.Severity(d.Severity),
			Code:     diag.Code(d.Code),
			Message:  d.Message,
			Primary: source.Span{
				File:  source.FileID(d.File),
				Start: d.Start,
				End:   d.End,
			},
		})
	}
	return true, nil
}
