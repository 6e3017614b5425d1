package loader

import (
	"github.com/pkg/errors"
)

// resolveSymbol resolves a symbol reference of obj to an absolute address.
// Index 0 resolves to 0 and exists only for entries that need no symbol.
// Search order: session cache, local definition, obj's direct dependencies in
// recorded order, then the full session list in load order — the final scan
// gives conventional global visibility, where a transitive dependency may
// legitimately supply the definition.
func (l *Loader) resolveSymbol(s *session, obj *LoadedObject, symIdx uint32) (uint64, error) {
	if symIdx == 0 {
		return 0, nil
	}
	sym, err := obj.symbolAt(symIdx)
	if err != nil {
		return 0, err
	}
	name, err := obj.symbolName(sym)
	if err != nil {
		return 0, err
	}
	if cached, ok := s.symbolCache[name]; ok {
		return cached.addr, nil
	}
	if sym.IsDefined() {
		addr := obj.Base + sym.Svalue
		s.cacheSymbol(name, addr, obj)
		return addr, nil
	}
	for _, dep := range obj.Deps {
		if addr, found, err := l.lookupIn(s, dep, name); err != nil || found {
			return addr, err
		}
	}
	for _, other := range s.objects {
		if other == obj {
			continue
		}
		if addr, found, err := l.lookupIn(s, other, name); err != nil || found {
			return addr, err
		}
	}
	return 0, errors.Wrapf(ErrUnresolvedSymbol, "%q referenced by %q", name, obj.Name)
}

func (l *Loader) lookupIn(s *session, candidate *LoadedObject, name string) (addr uint64, found bool, err error) {
	definition, found, err := candidate.lookupDefinition(name)
	if err != nil || !found {
		return 0, false, err
	}
	addr = candidate.Base + definition.Svalue
	s.cacheSymbol(name, addr, candidate)
	return addr, true, nil
}
