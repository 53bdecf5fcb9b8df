package broadcast

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lumennet/lumen-core/core"
)

// seenDB is the TTL-bounded database of recently-seen message digests, plus
// the 16-bit interner mapping each to a short id for Advr/Want frames (spec
// §4.7). Reassignment happens naturally as older digests fall out of the
// expirable cache and newer ones take their place in the free-list.
type seenDB struct {
	ttl        time.Duration
	seen       *lru.LRU[core.Digest, InternedID]
	byID       map[InternedID]core.Digest
	free       []InternedID
	nextFree   InternedID
	onEvictExt func(core.Digest)
}

// newSeenDB constructs a seenDB with the given TTL window. onEvictExt, if
// non-nil, is notified with the evicted digest after internal bookkeeping —
// the event loop uses it to drop the message content it was holding for that
// digest.
func newSeenDB(ttl time.Duration, onEvictExt func(core.Digest)) *seenDB {
	db := &seenDB{ttl: ttl, byID: make(map[InternedID]core.Digest), onEvictExt: onEvictExt}
	db.seen = lru.NewLRU[core.Digest, InternedID](1<<16, db.onEvict, ttl)
	return db
}

// onEvict returns an interned id to the free list once its digest falls out
// of the TTL window, satisfying spec §4.7's "reassignment occurs when older
// digests fall out of the window".
func (db *seenDB) onEvict(digest core.Digest, id InternedID) {
	db.free = append(db.free, id)
	delete(db.byID, id)
	if db.onEvictExt != nil {
		db.onEvictExt(digest)
	}
}

// Seen reports whether digest has been recorded and not yet expired.
func (db *seenDB) Seen(digest core.Digest) bool {
	_, ok := db.seen.Get(digest)
	return ok
}

// Record marks digest as seen, assigning it a fresh interned id (reusing a
// freed one where available), and returns that id.
func (db *seenDB) Record(digest core.Digest) InternedID {
	if id, ok := db.seen.Get(digest); ok {
		return id
	}
	var id InternedID
	if n := len(db.free); n > 0 {
		id = db.free[n-1]
		db.free = db.free[:n-1]
	} else {
		id = db.nextFree
		db.nextFree++
	}
	db.seen.Add(digest, id)
	db.byID[id] = digest
	return id
}

// Lookup resolves an interned id back to its digest.
func (db *seenDB) Lookup(id InternedID) (core.Digest, bool) {
	d, ok := db.byID[id]
	return d, ok
}
