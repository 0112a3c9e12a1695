package dsu

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"
	"time"
)

// ServerConfig configures a Server at construction. Only Port and
// BindAddress have meaningful zero-value defaults.
type ServerConfig struct {
	// Port is the UDP port to bind. Defaults to DefaultPort (26760).
	Port int

	// BindAddress is the IPv4 address to bind. Defaults to "127.0.0.1" —
	// this library never binds IPv6 or a non-loopback address.
	BindAddress string

	// Debug enables debug logging of dropped/rejected datagrams.
	Debug bool

	// Metrics, if non-nil, receives protocol-level counters and gauges.
	// Construct with NewMetrics.
	Metrics *Metrics
}

// inboundDatagram pairs a received datagram with its source address.
type inboundDatagram struct {
	buf  []byte
	addr *net.UDPAddr
}

type deviceEventKind uint8

const (
	eventUpdated deviceEventKind = iota
	eventDisconnected
)

type deviceEvent struct {
	id   DeviceID
	kind deviceEventKind
}

// Server is the DSU protocol engine: it owns the UDP socket, the device
// registry, the subscription table and the periodic sweep, and fans
// device updates out to subscribed clients.
//
// All core state (registry, subscriptions) is mutated only on the
// goroutine running Run — a single cooperative event-loop thread.
// Device signals and inbound datagrams are handed to that goroutine
// over channels by small forwarder goroutines that touch no server
// state themselves.
type Server struct {
	Debug bool

	serverID uint32
	conn     *net.UDPConn
	sender   packetSender
	metrics  *Metrics

	registry      *deviceRegistry
	subscriptions *subscriptionTable

	datagrams chan inboundDatagram
	events    chan deviceEvent
	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer binds the UDP socket and constructs a Server ready to have
// devices added and Run called.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1"
	}
	if ip := net.ParseIP(cfg.BindAddress); ip == nil || ip.To4() == nil || !ip.IsLoopback() {
		return nil, fmt.Errorf("dsu: bind address %q is not an IPv4 loopback address", cfg.BindAddress)
	}

	conn, err := listenUDPReuseAddr(cfg.BindAddress, cfg.Port)
	if err != nil {
		return nil, err
	}

	return &Server{
		Debug:         cfg.Debug,
		serverID:      randServerID(),
		conn:          conn,
		sender:        conn,
		metrics:       cfg.Metrics,
		registry:      newDeviceRegistry(),
		subscriptions: newSubscriptionTable(),
		datagrams:     make(chan inboundDatagram, 64),
		events:        make(chan deviceEvent, 64),
		closing:       make(chan struct{}),
	}, nil
}

// listenUDPReuseAddr binds a non-blocking IPv4 UDP socket with
// SO_REUSEADDR set, so a restarted server can rebind its port
// immediately.
func listenUDPReuseAddr(bindAddr string, port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				opErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("%s:%d", bindAddr, port))
	if err != nil {
		return nil, fmt.Errorf("dsu: listen: %w", err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("dsu: unexpected packet conn type %T", pc)
	}
	return conn, nil
}

// randServerID generates the 32-bit random server_id included in every
// outbound header.
func randServerID() uint32 {
	var b [4]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint32(b[:])
}

// AddDevice registers d. Must be called from the same goroutine that
// runs (or will run) the server's event loop.
func (s *Server) AddDevice(d Device) error {
	sub := d.Subscribe()
	id, err := s.registry.Add(d, sub)
	if err != nil {
		sub.Close()
		return err
	}

	go s.watchDevice(id, sub)

	if notifiable, ok := d.(AddedNotifiable); ok {
		notifiable.Added(s)
	}
	s.updateDeviceGauge()
	return nil
}

// ActiveDeviceCount reports how many devices are currently registered.
func (s *Server) ActiveDeviceCount() uint8 {
	return uint8(s.registry.Count())
}

// watchDevice forwards one device's Updated/Disconnected signals onto
// the server's shared events channel, without touching any server state
// itself — the event loop goroutine does all the mutating.
func (s *Server) watchDevice(id DeviceID, sub DeviceSubscription) {
	updated := sub.Updated()
	disconnected := sub.Disconnected()
	for {
		select {
		case _, ok := <-updated:
			if !ok {
				updated = nil
				continue
			}
			select {
			case s.events <- deviceEvent{id: id, kind: eventUpdated}:
			case <-s.closing:
				return
			}
		case <-disconnected:
			select {
			case s.events <- deviceEvent{id: id, kind: eventDisconnected}:
			case <-s.closing:
			}
			return
		case <-s.closing:
			return
		}
	}
}

// Run drives the event loop: socket reads, device events and the
// 1-second sweep timer are the only dispatches into core state. Run
// blocks until ctx is cancelled, then tears the server down and returns;
// it also returns once Close has torn the server down.
func (s *Server) Run(ctx context.Context) error {
	go s.readLoop()

	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return nil
		case <-s.closing:
			return nil
		case dg := <-s.datagrams:
			s.handleDatagram(dg.buf, dg.addr)
		case ev := <-s.events:
			s.handleDeviceEvent(ev)
		case <-ticker.C:
			s.runSweep()
		}
	}
}

func (s *Server) runSweep() {
	start := time.Now()
	result := s.subscriptions.Sweep()
	if s.metrics != nil {
		s.metrics.observeSweep(time.Since(start), result)
		s.updateSubscriptionGauges()
	}
}

func (s *Server) handleDeviceEvent(ev deviceEvent) {
	switch ev.kind {
	case eventUpdated:
		device, ok := s.registry.Get(ev.id)
		if !ok {
			return
		}
		s.emitUpdate(ev.id, device)
	case eventDisconnected:
		s.removeDevice(ev.id)
	}
}

// removeDevice handles the disconnect path: detach the signal
// subscription, fire removed(self) while the device is still present in
// the registry (so it may safely dereference the server during the
// signal), then remove it from the registry. Subscription-table entries
// referencing it are left for the next sweep to reap — a deliberate
// trade-off against proactively walking every client index on every
// disconnect.
func (s *Server) removeDevice(id DeviceID) {
	device, sub, ok := s.registry.Lookup(id)
	if !ok {
		return
	}
	sub.Close()
	if notifiable, ok := device.(RemovedNotifiable); ok {
		notifiable.Removed(s)
	}
	s.registry.Remove(id)
	s.updateDeviceGauge()
}

// readLoop drains the socket non-blockingly: a short read deadline lets
// it notice shutdown promptly without spinning.
func (s *Server) readLoop() {
	buf := make([]byte, recvBufferSize)
	for {
		select {
		case <-s.closing:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-s.closing:
				return
			default:
			}
			log.Printf("dsu: recv error: %v", err)
			continue
		}

		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case s.datagrams <- inboundDatagram{buf: cp, addr: addr}:
		case <-s.closing:
			return
		}
	}
}

// teardown detaches the socket reader, stops accepting further sweeps,
// then fires removed(self) on every still-registered device before
// releasing any state.
func (s *Server) teardown() {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.conn.Close()
		for _, pair := range s.registry.All() {
			s.removeDevice(pair.ID)
		}
	})
}

// Close tears the server down without going through Run; useful for
// callers (and tests) that constructed a Server but never started the
// event loop, or that want to stop it from outside Run's ctx.
func (s *Server) Close() error {
	s.teardown()
	return nil
}

func (s *Server) updateDeviceGauge() {
	if s.metrics != nil {
		s.metrics.activeDevices.Set(float64(s.registry.Count()))
	}
}

func (s *Server) updateSubscriptionGauges() {
	s.metrics.activeClients.Set(float64(s.subscriptions.ClientCount()))
	s.metrics.packetCounters.Set(float64(s.subscriptions.CounterCount()))
}
