package dsu

// DeviceType describes what motion capability a device reports, and
// gates which motion fields the emitter fills in.
type DeviceType uint8

const (
	NoMotion DeviceType = iota
	AccelerometerOnly
	GyroFull
)

// ConnectionType describes how a device is physically attached.
type ConnectionType uint8

const (
	ConnectionOther ConnectionType = iota
	ConnectionUSB
	ConnectionBluetooth
)

// BatteryStatus mirrors the DSU wire encoding for battery level exactly;
// values are not sequential.
type BatteryStatus uint8

const (
	BatteryNA       BatteryStatus = 0x00
	BatteryDying    BatteryStatus = 0x01
	BatteryLow      BatteryStatus = 0x02
	BatteryMedium   BatteryStatus = 0x03
	BatteryHigh     BatteryStatus = 0x04
	BatteryFull     BatteryStatus = 0x05
	BatteryCharging BatteryStatus = 0xEE
	BatteryCharged  BatteryStatus = 0xEF
)

// slotState is the "state" byte of a slot descriptor.
type slotState uint8

const (
	slotNotConnected slotState = 0
	slotConnected    slotState = 2
)

// DeviceOrientation selects the accelerometer/gyro axis remap applied
// before encoding motion data.
type DeviceOrientation uint8

const (
	OrientationNormal DeviceOrientation = iota
	OrientationSidewaysLeft
	OrientationSidewaysRight
	OrientationInverted
)

// ButtonBit indexes the 16 positional button bits, low byte then high
// byte.
type ButtonBit uint8

const (
	ButtonShare ButtonBit = iota
	ButtonL3
	ButtonR3
	ButtonOptions
	ButtonUp
	ButtonRight
	ButtonDown
	ButtonLeft
	ButtonL2
	ButtonR2
	ButtonL1
	ButtonR1
	ButtonX
	ButtonA
	ButtonB
	ButtonY
)

// Buttons is the 16-bit positional button bitmap. Bit N corresponds to
// ButtonBit(N).
type Buttons uint16

// Has reports whether the given button bit is set.
func (b Buttons) Has(bit ButtonBit) bool {
	return b&(1<<uint(bit)) != 0
}

// BaseData is the digital+stick snapshot a device must be able to
// produce on demand.
type BaseData struct {
	Buttons Buttons
	Home    bool
	Touch   bool
	LeftX   uint8
	LeftY   uint8
	RightX  uint8
	RightY  uint8
}

// AnalogButtonsData holds measured or synthesised analog pressures for
// the twelve buttons with an analog reading, in the §4.4-authoritative
// order: dpad left/down/right/up, Y/B/A/X, R1/L1/R2/L2.
type AnalogButtonsData struct {
	DPadLeft  uint8
	DPadDown  uint8
	DPadRight uint8
	DPadUp    uint8
	Y         uint8
	B         uint8
	A         uint8
	X         uint8
	R1        uint8
	L1        uint8
	R2        uint8
	L2        uint8
}

// TouchData is a single active touch point.
type TouchData struct {
	ID uint8
	X  uint16
	Y  uint16
}

// MotionData is a 3-axis float reading, in Gs for accelerometer or
// degrees/second for gyro.
type MotionData struct {
	X, Y, Z float32
}
