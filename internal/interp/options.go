package interp

// Option configures a VM at construction time, mirroring the host's
// "SetMaxInstructions / onOutput / setInput" knobs (spec §6.4) as
// functional options rather than mutable public fields — the teacher
// embedding surface's `With...` pattern.
type Option func(*VM)

// WithMaxInstructions bounds the number of bytecode instructions a single
// top-level invocation may execute before raising QuotaExceeded (spec
// §4.4, testable property 8). Zero means unlimited.
func WithMaxInstructions(n int64) Option {
	return func(vm *VM) { vm.maxInstructions = n }
}

// WithOutput installs the synchronous output sink (spec §5 "OnOutput").
func WithOutput(sink func(string)) Option {
	return func(vm *VM) { vm.onOutput = sink }
}

// WithInput installs the line/value input provider consumed by built-ins
// that read host input (spec §6.4 "setInput").
func WithInput(provider func() string) Option {
	return func(vm *VM) { vm.input = provider }
}
