// Package boltcache wraps a repo.Client with a persistent BoltDB-backed
// cache of its index, keyed so that bucket iteration order already matches
// version-descending — avoiding a second sort on every cache population.
// Grounded on golang-dep's internal/gps/source_cache_bolt.go, which caches
// source-manager metadata the same way.
package boltcache

import (
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"

	"github.com/tapforge/tapforge/pkgmodel"
	"github.com/tapforge/tapforge/repo"
	"github.com/tapforge/tapforge/semver"
)

// componentMax bounds each of major/minor/patch to a 3-byte big-endian key
// segment (2^24 versions per component, ample headroom for real package
// version numbers).
const componentMax = 1 << 23

// CachedClient wraps an underlying repo.Client, persisting its ListVersions
// results to a BoltDB file so repeat resolves (e.g. across CLI invocations)
// avoid re-querying the underlying transport. ListVersions fetches every
// listed definition from the underlying client, stores it in the bolt file
// and hands the definition itself back as each entry's Handle; GetDefinition
// returns such a handle as is and delegates any other handle to the
// underlying client.
type CachedClient struct {
	underlying repo.Client
	db         *bolt.DB
	ttl        time.Duration
}

// Open opens (creating if absent) a BoltDB file at path and wraps underlying
// with a cache whose entries are considered fresh for ttl.
func Open(underlying repo.Client, path string, ttl time.Duration) (*CachedClient, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, repo.Wrap(underlying.URL(), repo.Permanent, errors.Wrap(err, "opening bolt cache"))
	}
	return &CachedClient{underlying: underlying, db: db, ttl: ttl}, nil
}

func (c *CachedClient) Close() error { return c.db.Close() }

func (c *CachedClient) URL() string { return c.underlying.URL() }

type wireEntry struct {
	StoredAt int64           `json:"stored_at"`
	RawDef   json.RawMessage `json:"def"`
}

func versionKey(v semver.SemanticVersion) []byte {
	k := make(nuts.Key, 0, 3*nuts.KeyLen(componentMax))
	for _, c := range []uint64{v.Major, v.Minor, v.Patch} {
		seg := make(nuts.Key, nuts.KeyLen(componentMax))
		seg.Put(c)
		k = append(k, seg...)
	}
	return k
}

// ListVersions returns the bucket's cached entries (newest-first byte order,
// thanks to versionKey) if fresh, otherwise refreshes from the underlying
// client and repopulates the bucket.
func (c *CachedClient) ListVersions(name, os string, arch pkgmodel.CpuArchitecture) ([]repo.VersionEntry, error) {
	bucketName := []byte(c.underlying.URL() + "|" + name + "|" + os + "|" + arch.String())

	if cached, ok := c.readFresh(bucketName); ok {
		return cached, nil
	}

	live, err := c.underlying.ListVersions(name, os, arch)
	if err != nil {
		return nil, err
	}

	defs := make([]pkgmodel.PackageDef, 0, len(live))
	for _, ve := range live {
		def, err := c.underlying.GetDefinition(ve.Handle)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	if err := c.write(bucketName, defs); err != nil {
		return nil, err
	}

	out := make([]repo.VersionEntry, len(defs))
	for i, d := range defs {
		out[i] = repo.VersionEntry{Identity: d.Identity, Handle: d}
	}
	return out, nil
}

// GetDefinition is handed either a pkgmodel.PackageDef (already resolved, as
// produced by ListVersions above) or a handle belonging to the underlying
// client, for callers that hold onto a handle from before caching began.
func (c *CachedClient) GetDefinition(h repo.Handle) (pkgmodel.PackageDef, error) {
	if def, ok := h.(pkgmodel.PackageDef); ok {
		return def, nil
	}
	return c.underlying.GetDefinition(h)
}

func (c *CachedClient) readFresh(bucketName []byte) ([]repo.VersionEntry, bool) {
	var out []repo.VersionEntry
	now := time.Now()
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return errNoBucket
		}
		cur := b.Cursor()
		for k, v := cur.Last(); k != nil; k, v = cur.Prev() {
			var we wireEntry
			if err := json.Unmarshal(v, &we); err != nil {
				return err
			}
			if c.ttl > 0 && now.Sub(time.Unix(we.StoredAt, 0)) > c.ttl {
				return errStale
			}
			var def pkgmodel.PackageDef
			if err := json.Unmarshal(we.RawDef, &def); err != nil {
				return err
			}
			out = append(out, repo.VersionEntry{Identity: def.Identity, Handle: def})
		}
		return nil
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

func (c *CachedClient) write(bucketName []byte, defs []pkgmodel.PackageDef) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && err != bolt.ErrBucketNotFound {
			return errors.Wrap(err, "clearing stale bucket")
		}
		b, err := tx.CreateBucket(bucketName)
		if err != nil {
			return errors.Wrap(err, "creating bucket")
		}
		for _, def := range defs {
			raw, err := json.Marshal(def)
			if err != nil {
				return err
			}
			we := wireEntry{StoredAt: time.Now().Unix(), RawDef: raw}
			val, err := json.Marshal(we)
			if err != nil {
				return err
			}
			if err := b.Put(versionKey(def.Identity.Version), val); err != nil {
				return err
			}
		}
		return nil
	})
}

var (
	errNoBucket = bytesErr("no cached bucket")
	errStale    = bytesErr("cached entry is stale")
)

type bytesErr string

func (e bytesErr) Error() string { return string(e) }
