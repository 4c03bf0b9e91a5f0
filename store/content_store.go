package store

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	ndlcrypto "github.com/gdgiangi/nodalync-protocol-sub004/crypto"
)

// blobPath returns the content/ path for hash, named by its lowercase hex
// digest (spec.md §6).
func (d *DB) blobPath(hash ndlcrypto.Hash) string {
	return filepath.Join(d.contentDir, hex.EncodeToString(hash[:]))
}

// PutBlob writes data content-addressed under content/, atomically: write
// to a temp file in the same directory, fsync it, rename over the final
// path, then fsync the directory so the rename itself is durable.
func (d *DB) PutBlob(hash ndlcrypto.Hash, data []byte) error {
	final := d.blobPath(hash)
	if _, err := os.Stat(final); err == nil {
		d.blobCache.put(hash, data)
		return nil
	}

	tmp, err := os.CreateTemp(d.contentDir, ".tmp-blob-*")
	if err != nil {
		return fmt.Errorf("store: create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: fsync temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp blob: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("store: rename blob into place: %w", err)
	}
	if dir, err := os.Open(d.contentDir); err == nil {
		dir.Sync()
		dir.Close()
	}

	d.blobCache.put(hash, data)
	return nil
}

// GetBlob returns blob bytes, checking the in-process cache before falling
// through to disk.
func (d *DB) GetBlob(hash ndlcrypto.Hash) ([]byte, bool, error) {
	if data, ok := d.blobCache.get(hash); ok {
		return data, true, nil
	}
	data, err := os.ReadFile(d.blobPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: read blob: %w", err)
	}
	d.blobCache.put(hash, data)
	return data, true, nil
}

// DeleteBlob removes a blob from disk and the cache. Missing blobs are not
// an error: callers delete defensively alongside manifest deletion.
func (d *DB) DeleteBlob(hash ndlcrypto.Hash) error {
	d.blobCache.remove(hash)
	if err := os.Remove(d.blobPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete blob: %w", err)
	}
	return nil
}
