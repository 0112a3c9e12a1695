package dsu

import (
	"log"
	"net"
)

// handleDatagram parses one inbound datagram and dispatches it. Malformed
// datagrams are dropped silently (debug-logged only); header validation
// failures are observed here, malformed bodies in the per-type handlers.
func (s *Server) handleDatagram(buf []byte, addr *net.UDPAddr) {
	hdr, body, err := parseHeader(magicInbound, buf)
	if err != nil {
		if s.Debug {
			log.Printf("dsu: dropping datagram from %s: %v", addr, err)
		}
		if s.metrics != nil {
			s.metrics.datagramsDropped.Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.datagramsReceived.Inc()
	}

	switch hdr.MessageType {
	case msgTypeVersion:
		s.handleVersion(hdr, addr)
	case msgTypePorts:
		s.handlePorts(hdr, body, addr)
	case msgTypeData:
		s.handleData(hdr, body, addr)
	default:
		if s.Debug {
			log.Printf("dsu: dropping datagram from %s: unknown message type %#x", addr, uint32(hdr.MessageType))
		}
	}
}

func (s *Server) handleVersion(hdr parsedHeader, addr *net.UDPAddr) {
	reply := encodeVersionReply(s.serverID)
	if _, err := s.sender.WriteToUDP(reply, addr); err != nil {
		log.Printf("dsu: send VERSION reply to %s failed: %v", addr, err)
	}
}

func (s *Server) handlePorts(hdr parsedHeader, body []byte, addr *net.UDPAddr) {
	slotIDs, err := parsePortsRequestBody(body)
	if err != nil {
		if s.Debug {
			log.Printf("dsu: malformed PORTS request from %s: %v", addr, err)
		}
		return
	}

	for _, slotID := range slotIDs {
		// Slot-id validity is a precondition of the slot-descriptor writer:
		// reject out-of-range requests here rather than ever calling the
		// writer with one.
		if slotID >= SlotsPerServer {
			continue
		}

		_, device, occupied := s.registry.AtSlot(slotID)
		var reply []byte
		if occupied {
			reply = encodePortsReply(s.serverID, slotID, true, device.GetDeviceType(), device.GetConnectionType(), device.GetMAC(), device.GetBattery())
		} else {
			reply = encodePortsReply(s.serverID, slotID, false, 0, 0, 0, 0)
		}
		if _, err := s.sender.WriteToUDP(reply, addr); err != nil {
			log.Printf("dsu: send PORTS reply to %s failed: %v", addr, err)
		}
	}
}

func (s *Server) handleData(hdr parsedHeader, body []byte, addr *net.UDPAddr) {
	req, err := parseDataRequestBody(body)
	if err != nil {
		if s.Debug {
			log.Printf("dsu: malformed DATA request from %s: %v", addr, err)
		}
		return
	}

	targets := s.selectDataTargets(req)
	for _, id := range targets {
		s.subscriptions.Register(hdr.SourceID, id, addr)
	}
}

// selectDataTargets resolves which devices a DATA request subscribes to.
// registration_type == 0 means ALL currently registered devices;
// otherwise the by-slot and by-MAC selections are unioned.
func (s *Server) selectDataTargets(req dataRequestBody) []DeviceID {
	if req.RegistrationType == regByByte {
		all := s.registry.All()
		out := make([]DeviceID, len(all))
		for i, pair := range all {
			out[i] = pair.ID
		}
		return out
	}

	seen := make(map[DeviceID]struct{})
	if req.RegistrationType&regFlagSlot != 0 {
		if id, _, ok := s.registry.AtSlot(req.Slot); ok {
			seen[id] = struct{}{}
		}
	}
	if req.RegistrationType&regFlagMAC != 0 {
		if req.MAC == 0 {
			log.Printf("dsu: DATA request matching MAC 0 (\"no unique identity\")")
		}
		for _, id := range s.registry.ByMAC(req.MAC) {
			seen[id] = struct{}{}
		}
	}

	out := make([]DeviceID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}
