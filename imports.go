package x86stub

// NewGenericStdcallImport builds an ImportDesc around the generic stdcall
// trap behavior (§4.9): the handler itself is optional extra behavior run
// after Step's runImport has already popped the return address, adjusted
// ESP by argBytes, and zeroed EAX. Passing a nil handler models a stub that
// does nothing beyond the generic stdcall cleanup.
func NewGenericStdcallImport(description string, argBytes uint32, handler func(e *Emulator) error) ImportDesc {
	return ImportDesc{Handler: handler, Description: description, ArgBytes: argBytes}
}

// NewVarargsImport builds an ImportDesc carrying the varargs sentinel
// (arg_bytes == 254), which Step rejects with ErrUnsupportedImport before
// ever touching the stack.
func NewVarargsImport(description string) ImportDesc {
	return ImportDesc{Description: description, ArgBytes: varargsSentinel}
}
