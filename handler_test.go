package dsu

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildInboundHeader builds a valid inbound datagram of msgType with the
// given body, header and CRC filled in.
func buildInboundHeader(t *testing.T, sourceID uint32, msgType messageType, body []byte) []byte {
	t.Helper()
	buf := make([]byte, headerSize+len(body))
	writeHeader(buf, magicInbound, sourceID, msgType)
	copy(buf[headerSize:], body)
	finalizeFrame(buf)
	return buf
}

func TestHandleDatagramVersionQuery(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, sender)

	buf := buildInboundHeader(t, 1, msgTypeVersion, nil)
	s.handleDatagram(buf, udpAddr(9000))

	require.Len(t, sender.sent, 1)
	hdr, body, err := parseHeader(magicOutbound, sender.sent[0].buf)
	require.NoError(t, err)
	assert.Equal(t, msgTypeVersion, hdr.MessageType)
	assert.Equal(t, []byte{0xE9, 0x03}, body)
}

func TestHandleDatagramPortsQueryNoDevices(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, sender)

	body := make([]byte, 4+1)
	binary.LittleEndian.PutUint32(body[:4], 1)
	body[4] = 0 // slot id 0

	buf := buildInboundHeader(t, 1, msgTypePorts, body)
	s.handleDatagram(buf, udpAddr(9000))

	require.Len(t, sender.sent, 1)
	hdr, replyBody, err := parseHeader(magicOutbound, sender.sent[0].buf)
	require.NoError(t, err)
	assert.Equal(t, msgTypePorts, hdr.MessageType)
	assert.Equal(t, byte(0), replyBody[0])                 // slot id echoed
	assert.Equal(t, byte(slotNotConnected), replyBody[1])  // unoccupied
}

func TestHandleDatagramPortsQuerySkipsOutOfRangeSlot(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, sender)

	body := make([]byte, 4+1)
	binary.LittleEndian.PutUint32(body[:4], 1)
	body[4] = SlotsPerServer // out of range

	buf := buildInboundHeader(t, 1, msgTypePorts, body)
	s.handleDatagram(buf, udpAddr(9000))

	assert.Empty(t, sender.sent)
}

func TestHandleDatagramDataRegisterAll(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, sender)
	d1 := &fakeDevice{mac: 1, deviceType: NoMotion}
	d2 := &fakeDevice{mac: 2, deviceType: NoMotion}
	s.registry.Add(d1, &fakeSubscription{})
	s.registry.Add(d2, &fakeSubscription{})

	body := []byte{0x00, 0, 0, 0, 0, 0, 0, 0} // registration_type 0 = ALL
	buf := buildInboundHeader(t, 42, msgTypeData, body)
	s.handleDatagram(buf, udpAddr(9000))

	assert.Equal(t, 2, s.subscriptions.ClientCount())
}

func TestHandleDatagramDataRegisterByDuplicateMACZero(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, sender)
	d1 := &fakeDevice{mac: 0, deviceType: NoMotion}
	d2 := &fakeDevice{mac: 0, deviceType: NoMotion}
	s.registry.Add(d1, &fakeSubscription{})
	s.registry.Add(d2, &fakeSubscription{})

	body := []byte{regFlagMAC, 0, 0, 0, 0, 0, 0, 0}
	buf := buildInboundHeader(t, 7, msgTypeData, body)
	s.handleDatagram(buf, udpAddr(9000))

	assert.Equal(t, 2, s.subscriptions.ClientCount(), "both MAC-0 devices must be subscribed")
}

func TestHandleDatagramDropsMalformed(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, sender)

	buf := buildInboundHeader(t, 1, msgTypeVersion, nil)
	buf[0] ^= 0xFF // corrupt magic

	s.handleDatagram(buf, udpAddr(9000))
	assert.Empty(t, sender.sent)
}

func TestSelectDataTargetsUnionsSlotAndMAC(t *testing.T) {
	s := newTestServer(t, &fakeSender{})
	d0 := &fakeDevice{mac: 0x10}
	d1 := &fakeDevice{mac: 0x20}
	id0, _ := s.registry.Add(d0, &fakeSubscription{})
	id1, _ := s.registry.Add(d1, &fakeSubscription{})

	req := dataRequestBody{RegistrationType: regFlagSlot | regFlagMAC, Slot: 0, MAC: 0x20}
	targets := s.selectDataTargets(req)
	assert.ElementsMatch(t, []DeviceID{id0, id1}, targets)
}
