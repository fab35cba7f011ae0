package sen0460

// Register map of the SEN0460 particulate matter sensor. Concentrations and
// particle counts are big-endian uint16 values, two bytes per register.
const (
	RegPowerMode byte = 0x01

	RegPM1Standard     byte = 0x05
	RegPM25Standard    byte = 0x07
	RegPM10Standard    byte = 0x09
	RegPM1Atmospheric  byte = 0x0B
	RegPM25Atmospheric byte = 0x0D
	RegPM10Atmospheric byte = 0x0F

	RegCount03um byte = 0x11
	RegCount05um byte = 0x13
	RegCount1um  byte = 0x15
	RegCount25um byte = 0x17
	RegCount5um  byte = 0x19
	RegCount10um byte = 0x1B

	RegVersion byte = 0x1D
)

// Power mode command bytes written to RegPowerMode.
const (
	PowerSleep byte = 0x01
	PowerWake  byte = 0x02
)

// DefaultAddress is the fixed I2C address of the sensor.
const DefaultAddress byte = 0x19

// DefaultBus is the I2C bus number the sensor is usually attached to.
const DefaultBus = 1

const (
	lengthOneByte  = 1
	lengthTwoBytes = 2
)

// validRegisters lists every register the link will accept for a
// transaction. Anything else is refused before touching the bus.
var validRegisters = map[byte]bool{
	RegPowerMode:       true,
	RegPM1Standard:     true,
	RegPM25Standard:    true,
	RegPM10Standard:    true,
	RegPM1Atmospheric:  true,
	RegPM25Atmospheric: true,
	RegPM10Atmospheric: true,
	RegCount03um:       true,
	RegCount05um:       true,
	RegCount1um:        true,
	RegCount25um:       true,
	RegCount5um:        true,
	RegCount10um:       true,
	RegVersion:         true,
}
