package loader

import (
	"path/filepath"

	"github.com/Fl0k3n/kload/elf"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// loadDependencies resolves every needed-library entry of obj: an already
// loaded name is reused, anything else is searched in the configured library
// directories, loaded, and recursed into. A library was inserted into the
// session before this recursion, so graphs that cycle back to an ancestor
// terminate without explicit cycle detection.
func (l *Loader) loadDependencies(s *session, obj *LoadedObject) error {
	if obj.Dyn == nil {
		return nil
	}
	for _, name := range obj.Dyn.NeededNames {
		if dep, ok := s.byName[name]; ok {
			obj.Deps = append(obj.Deps, dep)
			continue
		}
		data, err := l.readLibraryFile(name)
		if err != nil {
			return err
		}
		dep, err := l.loadObject(s, name, data, true)
		if err != nil {
			return errors.Wrapf(err, "Loading library %q needed by %q", name, obj.Name)
		}
		obj.Deps = append(obj.Deps, dep)
		if err := l.loadDependencies(s, dep); err != nil {
			return err
		}
		level.Debug(s.logger).Log("msg", "library loaded", "name", name, "base", dep.Base, "digest", dep.Digest)
	}
	return nil
}

// readLibraryFile searches the library directories in their configured order
// and reads the first match in full. No partial-dependency state is
// acceptable for a process to run, so a miss is fatal to the whole session.
func (l *Loader) readLibraryFile(name string) ([]byte, error) {
	for _, dir := range l.searchDirs {
		path := filepath.Join(dir, name)
		if exists, err := afero.Exists(l.fs, path); err != nil || !exists {
			continue
		}
		data, err := afero.ReadFile(l.fs, path)
		if err != nil {
			return nil, errors.Wrapf(ErrLibraryNotFound, "Reading %q: %v", path, err)
		}
		return data, nil
	}
	return nil, errors.Wrapf(ErrLibraryNotFound, "%q not present in any of %v", name, l.searchDirs)
}

// loadObject runs the per-object pipeline (parse, segment mapping, dynamic
// table processing) and appends the record to the session list before any
// recursion into its dependencies happens.
func (l *Loader) loadObject(s *session, name string, data []byte, isLibrary bool) (*LoadedObject, error) {
	file, err := l.parser.Parse(data)
	if err != nil {
		return nil, err
	}
	if isLibrary && file.Header.Etype != elf.SHARED_OBJECT_FILE {
		return nil, errors.Wrapf(elf.ErrUnsupportedType, "Library %q is not a shared object", name)
	}

	var base uint64 = 0
	if file.Header.Etype == elf.SHARED_OBJECT_FILE {
		// only ET_EXEC is non-relocatable; a shared object (or PIE main)
		// always gets an allocator-chosen slot
		base = s.takeObjectBase()
	}
	obj := newLoadedObject(name, base)
	obj.EntryPoint = base + file.Header.Eentry
	obj.Digest = xxhashSum(data)
	obj.programHeaders = file.ProgramHeaders

	if err := l.mapSegments(obj, file); err != nil {
		return nil, err
	}
	if err := l.processDynamicInfo(obj, file); err != nil {
		return nil, err
	}
	s.advancePastObject(obj)
	s.appendObject(obj, isLibrary)
	l.metrics.objectLoaded()
	return obj, nil
}
