package sen0460

// Bus performs raw register transactions against the physical device. A Bus
// is not required to be safe for concurrent use; the link serializes access.
type Bus interface {
	// ReadRegister reads length bytes starting at register.
	ReadRegister(register byte, length int) ([]byte, error)
	// WriteRegister writes payload to register.
	WriteRegister(register byte, payload []byte) error
	// Close releases the underlying bus handle.
	Close() error
}
