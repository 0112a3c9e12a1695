package dsu

import "time"

// Protocol constants, per the Cemuhook DSU wire format.
const (
	// DefaultPort is the UDP port a DSU server listens on unless configured
	// otherwise.
	DefaultPort = 26760

	// protocolVersion is the fixed DSU protocol version embedded in every
	// header. The server rejects any datagram that doesn't carry exactly
	// this value.
	protocolVersion uint16 = 1001

	// SlotsPerServer bounds how many devices a single server can expose.
	// Slot ids are 0..SlotsPerServer-1.
	SlotsPerServer = 4

	// headerSize is the 20-byte common header: magic(4) + version(2) +
	// length(2) + crc32(4) + source_id(4) + message_type(4).
	headerSize = 20

	// slotDescriptorSize is the 11-byte slot descriptor embedded in PORTS
	// replies and as the DATA frame prefix.
	slotDescriptorSize = 11

	// dataFrameSize is the full DATA frame: header(20) + slot descriptor(11)
	// + connected flag(1) + packet number(4) + inputs body(64) = 100.
	dataFrameSize = 100

	// clientPacketNumberOffset is the fixed offset of the per-client packet
	// counter within an assembled DATA frame.
	clientPacketNumberOffset = headerSize + slotDescriptorSize + 1

	// RequestTimeout is how long a client subscription survives without a
	// renewing DATA request.
	RequestTimeout = 5 * time.Second

	// SweepInterval is how often the subscription table is swept for
	// expired clients.
	SweepInterval = 1 * time.Second

	// recvBufferSize is the fixed buffer size used for non-blocking reads;
	// larger inbound datagrams are truncated by the kernel, which is
	// acceptable for this protocol.
	recvBufferSize = 2048
)

func init() {
	// The per-client packet counter must land at absolute offset 32 in
	// the assembled DATA frame.
	if clientPacketNumberOffset != 32 {
		panic("dsu: clientPacketNumberOffset invariant violated")
	}
}

// magicInbound and magicOutbound are the 4-byte header magics: "DSUC" for
// client-originated requests, "DSUS" for server replies.
var (
	magicInbound  = [4]byte{'D', 'S', 'U', 'C'}
	magicOutbound = [4]byte{'D', 'S', 'U', 'S'}
)

// messageType identifies the DSU message discriminator carried in the
// header.
type messageType uint32

const (
	msgTypeVersion messageType = 0x100000
	msgTypePorts   messageType = 0x100001
	msgTypeData    messageType = 0x100002
)

// portsRequestMaxCount is the clamp applied to a PORTS request's slot
// count.
const portsRequestMaxCount = 5
