package kalloc

import "github.com/joshuapare/pagekit/phys"

// FatalHandler receives errors the allocator cannot recover from. The
// embedding system decides what "fatal" means: halting, or a recover()
// boundary around the faulting operation.
type FatalHandler func(err error)

// Halt is the default FatalHandler. It panics with err.
func Halt(err error) {
	panic(err)
}

// fatal reports a precondition violation to the configured handler and
// returns the error for handlers that let execution continue.
func (a *Allocator) fatal(op string, pa phys.Addr, cause error) error {
	err := &PreconditionError{Op: op, Addr: pa, Err: cause}
	a.stats.violations.Add(1)
	a.log.Error("precondition violated", "op", op, "addr", pa, "err", cause)
	a.opts.Fatal(err)
	return err
}
