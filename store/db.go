// Package store implements Nodalync's on-disk layout (spec.md §6): a
// single-file bbolt relational store for manifests, peers, channels and the
// settlement queue, plus a content-addressed blob directory and a transient
// LRU cache for recently read blobs.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const (
	currentSchemaVersion uint32 = 1

	dbFileName      = "nodalync.db"
	contentDirName  = "content"
	cacheDirName    = "cache"
	dirPermissions  = 0o700
	filePermissions = 0o600
)

var (
	bucketMeta            = []byte("meta")
	bucketManifests       = []byte("manifests")
	bucketPeers           = []byte("peers")
	bucketChannels        = []byte("channels")
	bucketSettlementQueue = []byte("settlement_queue")

	metaKeySchemaVersion = []byte("schema_version")
)

// DB owns the node's bbolt handle and the data_dir's blob/cache directories.
// One DB belongs to exactly one node; readers may run concurrently, but
// bbolt itself serializes writers, matching spec.md §5's "one writer" rule
// for the store.
type DB struct {
	bolt       *bbolt.DB
	dataDir    string
	contentDir string
	cacheDir   string
	blobCache  *blobCache
}

// Open opens (creating if absent) the bbolt file at dataDir/nodalync.db,
// ensures the content/ and cache/ directories and the schema's buckets
// exist, and checks the stored schema version.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	contentDir := filepath.Join(dataDir, contentDirName)
	cacheDir := filepath.Join(dataDir, cacheDirName)
	if err := os.MkdirAll(contentDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("store: create content dir: %w", err)
	}
	if err := os.MkdirAll(cacheDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("store: create cache dir: %w", err)
	}

	boltDB, err := bbolt.Open(filepath.Join(dataDir, dbFileName), filePermissions, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt: %w", err)
	}

	if err := boltDB.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketMeta, bucketManifests, bucketPeers,
			bucketChannels, bucketSettlementQueue,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return ensureSchemaVersion(tx)
	}); err != nil {
		boltDB.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	cache, err := newBlobCache(256)
	if err != nil {
		boltDB.Close()
		return nil, fmt.Errorf("store: init blob cache: %w", err)
	}

	return &DB{bolt: boltDB, dataDir: dataDir, contentDir: contentDir, cacheDir: cacheDir, blobCache: cache}, nil
}

// Close flushes and closes the bbolt handle.
func (d *DB) Close() error {
	return d.bolt.Close()
}

func ensureSchemaVersion(tx *bbolt.Tx) error {
	meta := tx.Bucket(bucketMeta)
	existing := meta.Get(metaKeySchemaVersion)
	if existing == nil {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, currentSchemaVersion)
		return meta.Put(metaKeySchemaVersion, buf)
	}
	got := binary.BigEndian.Uint32(existing)
	if got != currentSchemaVersion {
		return fmt.Errorf("schema version mismatch: on-disk %d, binary expects %d", got, currentSchemaVersion)
	}
	return nil
}
