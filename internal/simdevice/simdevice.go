// Package simdevice provides a trivial dsu.Device implementation used to
// drive the core engine end-to-end in cmd/dsuserver. It is a fixture, not a production device adapter: concrete
// device adapters (real joysticks, phone sensors, rumble extensions)
// are out of scope for the core library.
package simdevice

import (
	"sync"
	"time"

	"github.com/cwsl/dsuserver"
)

// SimDevice is a fake gamepad that toggles button A on every tick and
// slowly walks its accelerometer reading, publishing an Updated signal
// on a fixed tick. It implements dsu.Device.
type SimDevice struct {
	mu          sync.Mutex
	orientation dsu.DeviceOrientation
	mac         uint64
	deviceType  dsu.DeviceType
	tick        uint64

	updated      chan struct{}
	disconnected chan struct{}
	stop         chan struct{}
	stopOnce     sync.Once
}

// New constructs a SimDevice with the given MAC (low 48 bits significant)
// and motion capability, and starts its background update ticker at the
// given interval.
func New(mac uint64, deviceType dsu.DeviceType, interval time.Duration) *SimDevice {
	d := &SimDevice{
		mac:          mac,
		deviceType:   deviceType,
		updated:      make(chan struct{}, 1),
		disconnected: make(chan struct{}),
		stop:         make(chan struct{}),
	}
	go d.run(interval)
	return d
}

// Stop ends the background ticker and signals Disconnected.
func (d *SimDevice) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		close(d.disconnected)
	})
}

func (d *SimDevice) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.mu.Lock()
			d.tick++
			d.mu.Unlock()
			select {
			case d.updated <- struct{}{}:
			default:
			}
		}
	}
}

func (d *SimDevice) GetDeviceType() dsu.DeviceType           { return d.deviceType }
func (d *SimDevice) GetConnectionType() dsu.ConnectionType   { return dsu.ConnectionUSB }
func (d *SimDevice) GetMAC() uint64                          { return d.mac }
func (d *SimDevice) GetBattery() dsu.BatteryStatus           { return dsu.BatteryFull }
func (d *SimDevice) Orientation() dsu.DeviceOrientation      { return d.orientation }
func (d *SimDevice) SetOrientation(o dsu.DeviceOrientation)  { d.orientation = o }
func (d *SimDevice) GetAnalogInputs(*dsu.AnalogButtonsData)  {}
func (d *SimDevice) GetTouch(uint8) (dsu.TouchData, bool)    { return dsu.TouchData{}, false }

func (d *SimDevice) GetBaseInputs() dsu.BaseData {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buttons dsu.Buttons
	if d.tick%2 == 0 {
		buttons = buttons | (1 << uint(dsu.ButtonA))
	}
	return dsu.BaseData{
		Buttons: buttons,
		LeftX:   127,
		LeftY:   127,
		RightX:  127,
		RightY:  127,
	}
}

func (d *SimDevice) GetMotionTimestamp() uint64 {
	return uint64(time.Now().UnixMicro())
}

func (d *SimDevice) GetAccelerometer() dsu.MotionData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return dsu.MotionData{X: 0, Y: 1, Z: float32(d.tick%100) / 100}
}

func (d *SimDevice) GetGyro() dsu.MotionData {
	return dsu.MotionData{}
}

// Subscribe implements dsu.Device. SimDevice supports exactly one live
// subscriber at a time.
func (d *SimDevice) Subscribe() dsu.DeviceSubscription {
	return &subscription{device: d}
}

type subscription struct {
	device *SimDevice
}

func (s *subscription) Updated() <-chan struct{}      { return s.device.updated }
func (s *subscription) Disconnected() <-chan struct{} { return s.device.disconnected }
func (s *subscription) Close()                        {}
