package sqlindex

import (
	"database/sql/driver"
	"sync"

	"github.com/viant/balltree/index/balltree"
	sqlite "modernc.org/sqlite"
)

// slotKey identifies the tree of one sample table and configuration in one
// database file.
type slotKey struct {
	dbPath string
	table  string
	config string
}

// slots holds the in-process trees shared by every connection and virtual
// table over the same database file.
var slots = struct {
	sync.Mutex
	byKey map[slotKey]*slot
}{byKey: make(map[slotKey]*slot)}

// slot publishes one tree. gen counts invalidations of the sample table: a
// tree is published only under the generation its samples were read in.
type slot struct {
	mu       sync.Mutex
	done     *sync.Cond
	idx      *balltree.Index
	gen      uint64
	building bool
}

func slotFor(dbPath, table, config string) *slot {
	key := slotKey{dbPath: dbPath, table: table, config: config}
	slots.Lock()
	defer slots.Unlock()
	s := slots.byKey[key]
	if s == nil {
		s = &slot{}
		s.done = sync.NewCond(&s.mu)
		slots.byKey[key] = s
	}
	return s
}

// snapshot returns the published tree, if any, and the current generation.
func (s *slot) snapshot() (*balltree.Index, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx, s.gen
}

// claim reserves the build of a missing tree. It fails when a tree is
// published or another build is running.
func (s *slot) claim() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx != nil || s.building {
		return 0, false
	}
	s.building = true
	return s.gen, true
}

// release ends a claimed build and wakes waiters.
func (s *slot) release() {
	s.mu.Lock()
	s.building = false
	s.done.Broadcast()
	s.mu.Unlock()
}

// wait blocks while a build runs and returns whatever got published.
func (s *slot) wait() *balltree.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.building {
		s.done.Wait()
	}
	return s.idx
}

// publish stores idx unless the samples were invalidated after gen.
func (s *slot) publish(gen uint64, idx *balltree.Index) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx == nil || s.gen != gen {
		return false
	}
	s.idx = idx
	return true
}

// invalidate drops the tree and advances the generation. It reports whether
// a tree was dropped.
func (s *slot) invalidate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	dropped := s.idx != nil
	s.idx = nil
	return dropped
}

// InvalidateCache drops every cached index built over the sample table, in
// any database, and returns how many were dropped. Builds that read the
// samples before the call are not published afterwards.
func InvalidateCache(table string) int {
	slots.Lock()
	defer slots.Unlock()
	count := 0
	for key, s := range slots.byKey {
		if key.table == table && s.invalidate() {
			count++
		}
	}
	return count
}

// invalidateFunc implements SQL scalar balltree_invalidate(table TEXT) → INT.
func invalidateFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return int64(0), nil
	}
	table, err := asString(args[0])
	if err != nil {
		return int64(0), nil
	}
	return int64(InvalidateCache(table)), nil
}
