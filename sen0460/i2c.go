package sen0460

import (
	"fmt"

	i2c "github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"
)

func init() {
	// The i2c library logs every transaction at debug level on its own
	// logger; keep it quiet and let the link report errors.
	_ = logger.ChangePackageLogLevel("i2c", logger.InfoLevel)
}

// I2CBus is a Bus backed by a Linux /dev/i2c-N device.
type I2CBus struct {
	handle *i2c.I2C
}

// OpenI2C opens the sensor's register interface on the given bus number and
// device address.
func OpenI2C(bus int, address byte) (*I2CBus, error) {
	handle, err := i2c.NewI2C(address, bus)
	if err != nil {
		return nil, MarkFatal(fmt.Errorf("failed to open i2c bus %d address 0x%02X: %w", bus, address, err))
	}
	return &I2CBus{handle: handle}, nil
}

func (b *I2CBus) ReadRegister(register byte, length int) ([]byte, error) {
	data, read, err := b.handle.ReadRegBytes(register, length)
	if err != nil {
		return nil, fmt.Errorf("i2c read of register 0x%02X failed: %w", register, err)
	}
	if read != length {
		return nil, fmt.Errorf("short i2c read of register 0x%02X: wanted %d bytes, got %d", register, length, read)
	}
	return data, nil
}

func (b *I2CBus) WriteRegister(register byte, payload []byte) error {
	// The library has no block-write helper; on register-addressed devices
	// writing the register byte followed by the payload is equivalent.
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, register)
	frame = append(frame, payload...)

	written, err := b.handle.WriteBytes(frame)
	if err != nil {
		return fmt.Errorf("i2c write of register 0x%02X failed: %w", register, err)
	}
	if written != len(frame) {
		return fmt.Errorf("short i2c write of register 0x%02X: wanted %d bytes, wrote %d", register, len(frame), written)
	}
	return nil
}

func (b *I2CBus) Close() error {
	return b.handle.Close()
}
