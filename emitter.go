package dsu

import (
	"encoding/binary"
	"log"
	"math"
	"net"
)

// packetSender is the minimal socket surface the emitter needs; satisfied
// by *net.UDPConn and trivially fakeable in tests.
type packetSender interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// emitUpdate assembles one DATA frame for device d and sends a copy,
// with a patched per-client packet number and recomputed CRC32, to every
// client currently subscribed to it.
func (s *Server) emitUpdate(id DeviceID, d Device) {
	slotID, ok := s.registry.SlotOf(id)
	if !ok {
		// Device was removed between the signal firing and us handling it;
		// nothing to fan out to.
		return
	}
	if slotID >= SlotsPerServer {
		panic("dsu: slot id out of range in emitter")
	}

	frame := newDataFrameTemplate(s.serverID, slotID, d.GetDeviceType(), d.GetConnectionType(), d.GetMAC(), d.GetBattery())
	encodeInputsBody(frame[headerSize+slotDescriptorSize+1+4:], d)

	records := s.subscriptions.ClientsFor(id)
	for _, rec := range records {
		n := s.subscriptions.NextPacketNumber(rec.ClientID)
		binary.LittleEndian.PutUint32(frame[clientPacketNumberOffset:], n)
		finalizeFrame(frame)

		if _, err := s.sender.WriteToUDP(frame, rec.Addr); err != nil {
			log.Printf("dsu: send to client %d failed: %v", rec.ClientID, err)
			if s.metrics != nil {
				s.metrics.sendErrors.Inc()
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.framesSent.Inc()
		}
	}
}

// encodeInputsBody writes the 64-byte inputs body for device d into dst.
func encodeInputsBody(dst []byte, d Device) {
	base := d.GetBaseInputs()

	abdata := synthesizeAnalogButtons(base.Buttons)
	d.GetAnalogInputs(&abdata)

	binary.LittleEndian.PutUint16(dst[0:2], uint16(base.Buttons))
	dst[2] = boolByte(base.Home)
	dst[3] = boolByte(base.Touch)
	dst[4] = base.LeftX
	dst[5] = base.LeftY
	dst[6] = base.RightX
	dst[7] = base.RightY

	analog := [12]uint8{
		abdata.DPadLeft, abdata.DPadDown, abdata.DPadRight, abdata.DPadUp,
		abdata.Y, abdata.B, abdata.A, abdata.X,
		abdata.R1, abdata.L1, abdata.R2, abdata.L2,
	}
	copy(dst[8:20], analog[:])

	off := 20
	for i := uint8(0); i < 2; i++ {
		touch, ok := d.GetTouch(i)
		if ok {
			dst[off] = 1
			dst[off+1] = touch.ID
			binary.LittleEndian.PutUint16(dst[off+2:off+4], touch.X)
			binary.LittleEndian.PutUint16(dst[off+4:off+6], touch.Y)
		} else {
			for j := 0; j < 6; j++ {
				dst[off+j] = 0
			}
		}
		off += 6
	}

	deviceType := d.GetDeviceType()
	var motionTS uint64
	var accel, gyro MotionData
	if deviceType != NoMotion {
		motionTS = d.GetMotionTimestamp()
		accel = applyOrientationAccel(d.Orientation(), d.GetAccelerometer())
		if deviceType == GyroFull {
			gyro = applyOrientationGyro(d.Orientation(), d.GetGyro())
		}
	}
	binary.LittleEndian.PutUint64(dst[off:off+8], motionTS)
	off += 8
	putFloat32(dst[off:off+4], accel.X)
	putFloat32(dst[off+4:off+8], accel.Y)
	putFloat32(dst[off+8:off+12], accel.Z)
	off += 12
	putFloat32(dst[off:off+4], gyro.X)
	putFloat32(dst[off+4:off+8], gyro.Y)
	putFloat32(dst[off+8:off+12], gyro.Z)
}

// synthesizeAnalogButtons starts the analog-button block from the
// positional digital bits: 255 where the corresponding button is
// pressed, 0 otherwise. The device is then given a chance to overwrite
// any subset with measured values.
func synthesizeAnalogButtons(buttons Buttons) AnalogButtonsData {
	press := func(bit ButtonBit) uint8 {
		if buttons.Has(bit) {
			return 255
		}
		return 0
	}
	return AnalogButtonsData{
		DPadLeft:  press(ButtonLeft),
		DPadDown:  press(ButtonDown),
		DPadRight: press(ButtonRight),
		DPadUp:    press(ButtonUp),
		Y:         press(ButtonY),
		B:         press(ButtonB),
		A:         press(ButtonA),
		X:         press(ButtonX),
		R1:        press(ButtonR1),
		L1:        press(ButtonL1),
		R2:        press(ButtonR2),
		L2:        press(ButtonL2),
	}
}

// applyOrientationAccel and applyOrientationGyro implement the
// per-orientation axis remap table.
func applyOrientationAccel(o DeviceOrientation, m MotionData) MotionData {
	switch o {
	case OrientationSidewaysLeft:
		return MotionData{X: m.Z, Y: m.Y, Z: -m.X}
	case OrientationSidewaysRight:
		return MotionData{X: -m.Z, Y: m.Y, Z: m.X}
	case OrientationInverted:
		return MotionData{X: -m.X, Y: m.Y, Z: -m.Z}
	default:
		return m
	}
}

func applyOrientationGyro(o DeviceOrientation, m MotionData) MotionData {
	switch o {
	case OrientationSidewaysLeft:
		return MotionData{X: -m.Z, Y: m.Y, Z: m.X}
	case OrientationSidewaysRight:
		return MotionData{X: m.Z, Y: m.Y, Z: -m.X}
	case OrientationInverted:
		return MotionData{X: -m.X, Y: m.Y, Z: -m.Z}
	default:
		return m
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func putFloat32(dst []byte, f float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(f))
}
