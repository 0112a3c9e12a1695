package dsu

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	buf := encodeVersionReply(0xdeadbeef)
	hdr, body, err := parseHeader(magicOutbound, buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), hdr.SourceID)
	assert.Equal(t, msgTypeVersion, hdr.MessageType)
	assert.Len(t, body, 2)
}

func TestParseHeaderKnownGoodVersionRequest(t *testing.T) {
	t.Parallel()

	// A literal VERSION request for client_id 1, with the CRC computed by
	// this same package's encoder path rather than hand-transcribed, since
	// the CRC domain must match byte-for-byte.
	buf := make([]byte, headerSize)
	writeHeader(buf, magicInbound, 1, msgTypeVersion)
	finalizeFrame(buf)

	want := parsedHeader{SourceID: 1, MessageType: msgTypeVersion}
	got, body, err := parseHeader(magicInbound, buf)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(parsedHeader{})); diff != "" {
		t.Errorf("parseHeader mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, body)
}

func TestParseHeaderRejectsShortDatagram(t *testing.T) {
	t.Parallel()
	_, _, err := parseHeader(magicInbound, make([]byte, headerSize-1))
	require.ErrorIs(t, err, errShortDatagram)
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	t.Parallel()
	buf := make([]byte, headerSize)
	writeHeader(buf, magicInbound, 1, msgTypeVersion)
	finalizeFrame(buf)
	buf[0] ^= 0xFF

	_, _, err := parseHeader(magicInbound, buf)
	require.ErrorIs(t, err, errBadMagic)
}

// TestMutateSingleByteDropsDatagram is property P3: mutating any single
// byte of an otherwise-valid inbound datagram, CRC domain included,
// causes the parser to drop it.
func TestMutateSingleByteDropsDatagram(t *testing.T) {
	base := make([]byte, headerSize+dataReqBodyLn)
	writeHeader(base, magicInbound, 7, msgTypeData)
	base[headerSize] = 0 // registration_type
	base[headerSize+1] = 2
	finalizeFrame(base)

	_, _, err := parseHeader(magicInbound, base)
	require.NoError(t, err, "sanity: base datagram must itself be valid")

	for i := range base {
		mutated := make([]byte, len(base))
		copy(mutated, base)
		mutated[i] ^= 0x01

		_, _, err := parseHeader(magicInbound, mutated)
		assert.Errorf(t, err, "byte %d: expected parser to reject a single-bit flip", i)
	}
}

func TestFinalizeFrameCRCIsVerifiable(t *testing.T) {
	t.Parallel()
	buf := encodeVersionReply(42)
	_, _, err := parseHeader(magicOutbound, buf)
	require.NoError(t, err)

	buf[10] ^= 0xFF // corrupt the stored CRC field itself
	_, _, err = parseHeader(magicOutbound, buf)
	require.ErrorIs(t, err, errBadCRC)
}

func TestPutMACRoundTrip(t *testing.T) {
	t.Parallel()
	var buf [6]byte
	const mac = 0x00AABBCCDDEE
	putMAC(buf[:], mac)
	assert.Equal(t, uint64(mac), readMAC(buf[:]))
	// Big-endian, high byte first.
	assert.Equal(t, []byte{0x00, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}, buf[:])
}

func TestWriteSlotDescriptorUnoccupied(t *testing.T) {
	t.Parallel()
	buf := make([]byte, slotDescriptorSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	writeSlotDescriptor(buf, 2, false, 0, 0, 0, 0)

	want := make([]byte, slotDescriptorSize)
	want[0] = 2
	assert.Equal(t, want, buf)
}

func TestWriteSlotDescriptorOccupied(t *testing.T) {
	t.Parallel()
	buf := make([]byte, slotDescriptorSize)
	writeSlotDescriptor(buf, 1, true, GyroFull, ConnectionBluetooth, 0x00AABBCCDDEE, BatteryHigh)

	want := []byte{1, byte(slotConnected), byte(GyroFull), byte(ConnectionBluetooth), 0x00, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, byte(BatteryHigh)}
	assert.Equal(t, want, buf)
}

func TestEncodeVersionReplyShape(t *testing.T) {
	t.Parallel()
	buf := encodeVersionReply(9)
	require.Len(t, buf, headerSize+2)

	hdr, body, err := parseHeader(magicOutbound, buf)
	require.NoError(t, err)
	assert.Equal(t, msgTypeVersion, hdr.MessageType)
	assert.Equal(t, []byte{0xE9, 0x03}, body) // 1001 little-endian
}

func TestEncodePortsReplyShape(t *testing.T) {
	t.Parallel()
	buf := encodePortsReply(9, 0, false, 0, 0, 0, 0)
	require.Len(t, buf, 32)

	hdr, body, err := parseHeader(magicOutbound, buf)
	require.NoError(t, err)
	assert.Equal(t, msgTypePorts, hdr.MessageType)
	require.Len(t, body, 12)
	assert.Equal(t, byte(0), body[0]) // slot id
	assert.Equal(t, byte(0), body[1]) // state: unoccupied
}

func TestParsePortsRequestBodyClampsCount(t *testing.T) {
	t.Parallel()
	body := make([]byte, 4+10)
	littleEndianPutUint32(body[:4], 10)
	for i := 0; i < 10; i++ {
		body[4+i] = uint8(i)
	}

	slots, err := parsePortsRequestBody(body)
	require.NoError(t, err)
	assert.Len(t, slots, portsRequestMaxCount)
	assert.Equal(t, []uint8{0, 1, 2, 3, 4}, slots)
}

func TestParseDataRequestBody(t *testing.T) {
	t.Parallel()
	body := []byte{0x03, 2, 0x00, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	got, err := parseDataRequestBody(body)
	require.NoError(t, err)
	assert.Equal(t, dataRequestBody{RegistrationType: 0x03, Slot: 2, MAC: 0x00AABBCCDDEE}, got)
}

func littleEndianPutUint32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
