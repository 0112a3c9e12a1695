package dsu

// fakeDevice is a minimal Device used across this package's tests. Each
// instance is a distinct pointer, so two fakeDevices with identical
// fields are still distinct registry entries.
type fakeDevice struct {
	mac         uint64
	deviceType  DeviceType
	orientation DeviceOrientation
	base        BaseData
}

func (d *fakeDevice) GetDeviceType() DeviceType         { return d.deviceType }
func (d *fakeDevice) GetConnectionType() ConnectionType { return ConnectionUSB }
func (d *fakeDevice) GetMAC() uint64                    { return d.mac }
func (d *fakeDevice) GetBattery() BatteryStatus         { return BatteryFull }
func (d *fakeDevice) Orientation() DeviceOrientation    { return d.orientation }
func (d *fakeDevice) SetOrientation(o DeviceOrientation) { d.orientation = o }
func (d *fakeDevice) GetBaseInputs() BaseData           { return d.base }
func (d *fakeDevice) GetAnalogInputs(*AnalogButtonsData) {}
func (d *fakeDevice) GetTouch(uint8) (TouchData, bool)  { return TouchData{}, false }
func (d *fakeDevice) GetMotionTimestamp() uint64        { return 0 }
func (d *fakeDevice) GetAccelerometer() MotionData      { return MotionData{} }
func (d *fakeDevice) GetGyro() MotionData               { return MotionData{} }

func (d *fakeDevice) Subscribe() DeviceSubscription {
	return &fakeSubscription{
		updated:      make(chan struct{}, 1),
		disconnected: make(chan struct{}),
	}
}

type fakeSubscription struct {
	updated      chan struct{}
	disconnected chan struct{}
}

func (s *fakeSubscription) Updated() <-chan struct{}      { return s.updated }
func (s *fakeSubscription) Disconnected() <-chan struct{} { return s.disconnected }
func (s *fakeSubscription) Close()                        {}
