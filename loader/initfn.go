package loader

import (
	"github.com/pkg/errors"
)

const INIT_ARRAY_ENTRY_SIZE = 8

// Invoker is the collaborator that transfers control into freshly loaded
// code, used to run per-object constructors once relocation has succeeded.
type Invoker interface {
	Invoke(addr uint64) error
}

type noopInvoker struct{}

func (noopInvoker) Invoke(addr uint64) error { return nil }

// runInitializers walks the loaded-object list dependencies-first (reverse
// load order) and runs, per object, the single init function followed by the
// init array entries in array order. Fini pointers stay recorded on the
// object for process teardown, which happens outside this subsystem.
func (l *Loader) runInitializers(s *session) error {
	for i := len(s.objects) - 1; i >= 0; i-- {
		obj := s.objects[i]
		if obj.Dyn == nil {
			continue
		}
		if obj.Dyn.InitAddr != 0 {
			if err := l.invoker.Invoke(obj.Dyn.InitAddr); err != nil {
				return errors.Wrapf(err, "Init function of %q", obj.Name)
			}
		}
		for off := uint64(0); off < obj.Dyn.InitArraySize; off += INIT_ARRAY_ENTRY_SIZE {
			addr, err := obj.Mem.Uint64At(obj.Dyn.InitArrayAddr + off)
			if err != nil {
				return errors.Wrapf(err, "Init array of %q", obj.Name)
			}
			// crt convention: 0 and -1 entries are placeholders, not functions
			if addr == 0 || addr == ^uint64(0) {
				continue
			}
			if err := l.invoker.Invoke(addr); err != nil {
				return errors.Wrapf(err, "Init array entry of %q", obj.Name)
			}
		}
	}
	return nil
}
