package loader

import (
	"strings"

	"github.com/Fl0k3n/kload/elf"
	"github.com/Fl0k3n/kload/memory"
	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/xyproto/env/v2"
)

const LIBRARY_PATH_ENV = "KLOAD_LIBRARY_PATH"
const DEFAULT_LIBRARY_PATH = "/lib:/usr/lib"

// Process is what the process-management collaborator receives back: the
// absolute entry point, the initial stack pointer and the link map in load
// order (main executable first).
type Process struct {
	EntryPoint uint64
	StackTop   uint64
	Main       *LoadedObject
	Objects    []*LoadedObject
}

type Config struct {
	Allocator memory.PageAllocator
	Mapper    memory.Mapper
	// Fs is the file-reader collaborator used to read needed libraries,
	// searched across SearchDirs in order. Defaults to the OS filesystem.
	Fs         afero.Fs
	SearchDirs []string
	Logger     log.Logger
	Metrics    *Metrics
	Invoker    Invoker
}

type Loader struct {
	allocator  memory.PageAllocator
	mapper     memory.Mapper
	fs         afero.Fs
	searchDirs []string
	logger     log.Logger
	metrics    *Metrics
	invoker    Invoker
	parser     *elf.Parser
}

// DefaultSearchDirs reads the library directory list from the
// KLOAD_LIBRARY_PATH environment variable, colon separated.
func DefaultSearchDirs() []string {
	return strings.Split(env.Str(LIBRARY_PATH_ENV, DEFAULT_LIBRARY_PATH), ":")
}

func New(conf Config) *Loader {
	l := &Loader{
		allocator:  conf.Allocator,
		mapper:     conf.Mapper,
		fs:         conf.Fs,
		searchDirs: conf.SearchDirs,
		logger:     conf.Logger,
		metrics:    conf.Metrics,
		invoker:    conf.Invoker,
		parser:     elf.NewParser(),
	}
	if l.fs == nil {
		l.fs = afero.NewOsFs()
	}
	if l.searchDirs == nil {
		l.searchDirs = DefaultSearchDirs()
	}
	if l.logger == nil {
		l.logger = log.NewNopLogger()
	}
	if l.invoker == nil {
		l.invoker = noopInvoker{}
	}
	return l
}

// LoadExecutable establishes a fully linked process image in the target
// address space: it maps the main object, recursively loads every needed
// library, applies all relocations in two passes, runs initializers and maps
// the initial stack. Any hard failure aborts the whole session; partially
// mapped state is reclaimed by discarding the target address space, never by
// the loader itself.
func (l *Loader) LoadExecutable(image []byte) (*Process, error) {
	s := newSession(l.logger)
	proc, err := l.load(s, image)
	if err != nil {
		l.metrics.sessionFailed(err)
		level.Warn(s.logger).Log("msg", "load failed", "kind", KindOf(err), "err", err)
		return nil, err
	}
	l.metrics.sessionSucceeded()
	level.Info(s.logger).Log("msg", "process image ready",
		"entrypoint", proc.EntryPoint, "objects", len(proc.Objects), "digest", proc.Main.Digest)
	return proc, nil
}

func (l *Loader) load(s *session, image []byte) (*Process, error) {
	main, err := l.loadObject(s, "", image, false)
	if err != nil {
		return nil, err
	}
	if main.EntryPoint == main.Base {
		return nil, errors.Wrap(elf.ErrInvalidEntrypoint, "Main object")
	}
	if err := l.loadDependencies(s, main); err != nil {
		return nil, err
	}
	if err := l.relocateAll(s); err != nil {
		return nil, err
	}
	if err := l.runInitializers(s); err != nil {
		return nil, err
	}
	stackTop, err := l.setupStack(s)
	if err != nil {
		return nil, err
	}
	return &Process{
		EntryPoint: main.EntryPoint,
		StackTop:   stackTop,
		Main:       main,
		Objects:    s.objects,
	}, nil
}

func xxhashSum(data []byte) uint64 {
	return xxhash.Sum64(data)
}
