package loader

import (
	"github.com/Fl0k3n/kload/memory"
	"github.com/go-kit/log"
	"github.com/google/uuid"
)

// virtual layout of a freshly created process: shared objects are bump
// allocated upwards from SHARED_OBJECT_BASE, the stack sits just below the
// canonical user-space ceiling
const SHARED_OBJECT_BASE = 0x00007f0000000000
const OBJECT_GUARD_PAGES = 1
const STACK_TOP = 0x00007ffffffff000
const STACK_PAGES = 64

type resolvedSymbol struct {
	addr  uint64
	owner *LoadedObject
}

// session owns all state of one load: the deduplicated loaded-object list,
// the name-keyed seen set and the symbol cache. It is created per call and
// never shared, so concurrent process creation needs no locking here.
type session struct {
	id          string
	objects     []*LoadedObject
	byName      map[string]*LoadedObject
	symbolCache map[string]resolvedSymbol
	nextBase    uint64
	stack       *memory.Region
	logger      log.Logger
}

func newSession(logger log.Logger) *session {
	id := uuid.NewString()
	return &session{
		id:          id,
		objects:     []*LoadedObject{},
		byName:      map[string]*LoadedObject{},
		symbolCache: map[string]resolvedSymbol{},
		nextBase:    SHARED_OBJECT_BASE,
		logger:      log.With(logger, "session", id),
	}
}

// takeObjectBase reserves a non-overlapping base address slot; the slot is
// advanced past the object's mapped extent once its segments are in place.
func (s *session) takeObjectBase() uint64 {
	return s.nextBase
}

func (s *session) advancePastObject(obj *LoadedObject) {
	if end := obj.Mem.MaxMappedAddr(); end >= s.nextBase {
		s.nextBase = memory.PageAlignUp(end) + OBJECT_GUARD_PAGES*memory.PAGE_SIZE
	}
}

// appendObject inserts into the session list and seen set; this happens
// before the object's own dependencies are walked, which is what guarantees
// termination on cyclic dependency graphs.
func (s *session) appendObject(obj *LoadedObject, isLibrary bool) {
	s.objects = append(s.objects, obj)
	if isLibrary {
		s.byName[obj.Name] = obj
	}
}

func (s *session) cacheSymbol(name string, addr uint64, owner *LoadedObject) {
	s.symbolCache[name] = resolvedSymbol{addr: addr, owner: owner}
}
