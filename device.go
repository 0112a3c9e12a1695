package dsu

// Device is the polymorphic source of input snapshots the core consumes.
// Concrete device adapters (real joysticks, phone sensors, rumble
// extensions) are out of scope for this library; callers provide their
// own implementation.
type Device interface {
	// GetDeviceType reports motion capability and gates which motion
	// fields the emitter populates.
	GetDeviceType() DeviceType

	// GetConnectionType reports how the device is attached. Implementations
	// that don't track this may always return ConnectionOther.
	GetConnectionType() ConnectionType

	// GetMAC returns the device's 48-bit identifier in the low 48 bits of
	// the returned value. 0 means "no unique identity".
	GetMAC() uint64

	// GetBattery reports current battery level. Implementations that don't
	// track this may always return BatteryNA.
	GetBattery() BatteryStatus

	// Orientation returns the axis remap currently in effect for this
	// device.
	Orientation() DeviceOrientation

	// SetOrientation changes the axis remap for this device.
	SetOrientation(DeviceOrientation)

	// GetBaseInputs returns the current button/stick snapshot.
	GetBaseInputs() BaseData

	// GetAnalogInputs fills in any measured analog pressures the device
	// has available. The caller pre-populates abdata with synthesised
	// digital-derived values; implementations may overwrite
	// any subset of fields and must leave the rest untouched. Devices with
	// no analog buttons may implement this as a no-op.
	GetAnalogInputs(abdata *AnalogButtonsData)

	// GetTouch returns the touch point at the given index (0 or 1), or
	// ok=false if no touch is active there. Devices without a touch
	// surface may always return ok=false.
	GetTouch(index uint8) (data TouchData, ok bool)

	// GetMotionTimestamp returns the microsecond timestamp of the most
	// recent motion sample. Only called when GetDeviceType() != NoMotion.
	GetMotionTimestamp() uint64

	// GetAccelerometer returns the current accelerometer reading in Gs.
	// Only called when GetDeviceType() != NoMotion.
	GetAccelerometer() MotionData

	// GetGyro returns the current gyroscope reading in degrees/second.
	// Only called when GetDeviceType() == GyroFull.
	GetGyro() MotionData

	// Subscribe registers the server's interest in this device's signals
	// and returns a handle the server holds until the device is removed.
	// Devices may push into the returned channels from any goroutine; the
	// server reads them on a forwarder goroutine and hands each event to
	// its event-loop goroutine.
	Subscribe() DeviceSubscription
}

// DeviceSubscription is the channel-based signal contract a Device hands
// back from Subscribe: a pair of channels plus a Close to detach.
type DeviceSubscription interface {
	// Updated is pushed to whenever the device has a fresh input snapshot
	// ready to be fanned out to subscribers.
	Updated() <-chan struct{}

	// Disconnected is pushed to (or closed) exactly once, when the device
	// is going away.
	Disconnected() <-chan struct{}

	// Close detaches the subscription. Called by the server once on
	// removal; devices shared between servers must tolerate one
	// subscription being closed while another stays live.
	Close()
}

// AddedNotifiable and RemovedNotifiable are optional interfaces a Device
// may implement to learn when it has been attached to or detached from a
// server (the added(self)/removed(self) lifecycle signals). Both
// are optional: a Device that only wants to publish updates need not
// implement either.
type AddedNotifiable interface {
	Added(server *Server)
}

type RemovedNotifiable interface {
	Removed(server *Server)
}
