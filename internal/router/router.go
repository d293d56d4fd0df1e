// Package router classifies base-station peers as vehicles or dashboards,
// forwards drive commands vehicle-ward and fans out frames, vehicle lists and
// stream status dashboard-ward. A Router is owned by one goroutine and does
// no locking of its own.
package router

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"RoverLink/internal/model"
	"RoverLink/internal/parser"
	"RoverLink/internal/util"
)

// ErrNoVehicle is returned by InjectControl when the command had no target.
var ErrNoVehicle = errors.New("router: no vehicle for command")

// Sender delivers payloads to connections. A send error means the peer is
// presumed dead.
type Sender interface {
	SendText(connID string, data []byte) error
	// SendFrame delivers a frame tag and its binary payload back to back.
	SendFrame(connID string, tag, payload []byte) error
	// Close tears down a connection the router has given up on.
	Close(connID string)
}

// Hooks observe traffic passing through the router. Nil hooks are skipped.
type Hooks struct {
	OnStatus    func(model.VehicleStatus)
	OnTelemetry func(model.Telemetry)
	OnVehicles  func([]string)
}

// Stats counts routed traffic.
type Stats struct {
	Forwarded      uint64
	Dropped        uint64
	FramesRelayed  uint64
	Rejected       uint64
	SendFailures   uint64
	StreamNotices  uint64
	VehicleNotices uint64
}

// Router is the message router.
type Router struct {
	reg   *registry
	send  Sender
	hooks Hooks
	log   *logrus.Entry
	stats Stats

	streamOn bool
}

// New returns a router for at most maxPeers connections.
func New(send Sender, maxPeers int, hooks Hooks) *Router {
	return &Router{
		reg:   newRegistry(maxPeers),
		send:  send,
		hooks: hooks,
		log:   util.Component("router"),
	}
}

// Connect creates an Unknown record for a new connection.
func (r *Router) Connect(connID string) error {
	if _, err := r.reg.add(connID); err != nil {
		r.stats.Rejected++
		r.log.WithFields(util.Fields{"conn_id": connID, "max_peers": r.reg.max}).Warn("peer rejected, registry full")
		return err
	}
	r.log.WithField("conn_id", connID).Debug("peer connected")
	return nil
}

// Disconnect removes a connection and renegotiates whatever its role affected.
func (r *Router) Disconnect(connID string) {
	p, ok := r.reg.remove(connID)
	if !ok {
		return
	}
	r.log.WithFields(util.Fields{"conn_id": connID, "role": p.Role.String(), "vehicle_id": p.VehicleID}).Info("peer removed")
	switch p.Role {
	case RoleVehicle:
		r.vehicleListChanged()
	case RoleDashboard:
		r.renegotiateStream(false)
	}
}

// HandleText decodes and dispatches one text payload.
func (r *Router) HandleText(connID string, data []byte) {
	msg, err := parser.Decode(data)
	if err != nil {
		r.stats.Dropped++
		r.log.WithError(err).WithField("conn_id", connID).Warn("dropping text message")
		return
	}
	r.Dispatch(connID, msg)
}

// Dispatch routes a decoded message from connID.
func (r *Router) Dispatch(connID string, msg parser.Message) {
	p, ok := r.reg.get(connID)
	if !ok {
		// the record is created on first message when the transport did not announce it
		if err := r.Connect(connID); err != nil {
			return
		}
		p, _ = r.reg.get(connID)
	}

	switch msg.Kind {
	case parser.KindRegister:
		r.register(p, msg.Register)
	case parser.KindControl:
		r.control(p, *msg.Control)
	case parser.KindTelemetry:
		r.telemetry(p, *msg.Telemetry)
	case parser.KindVehicleStatus:
		r.status(p, *msg.Status)
	default:
		r.stats.Dropped++
		r.log.WithFields(util.Fields{"conn_id": connID, "type": msg.Type}).Debug("message not routed")
	}
}

func (r *Router) register(p *Peer, reg *model.Register) {
	switch reg.Role {
	case model.RoleVehicle:
		if other, ok := r.reg.vehicleByID(reg.VehicleID); ok && other != p {
			r.log.WithFields(util.Fields{"vehicle_id": reg.VehicleID, "conn_id": other.ConnID}).Warn("vehicle id taken over by new connection")
			r.reg.setRole(other, RoleUnknown, "")
		}
		r.reg.setRole(p, RoleVehicle, reg.VehicleID)
		r.log.WithFields(util.Fields{"conn_id": p.ConnID, "vehicle_id": reg.VehicleID}).Info("vehicle registered")
		r.vehicleListChanged()
		r.renegotiateStream(true)
	default:
		wasVehicle := p.Role == RoleVehicle
		r.promote(p)
		if wasVehicle {
			r.vehicleListChanged()
		}
	}
}

// promote makes p a dashboard and sends it the current vehicle list.
func (r *Router) promote(p *Peer) {
	if p.Role == RoleDashboard {
		r.sendVehicleList(p)
		return
	}
	r.reg.setRole(p, RoleDashboard, "")
	r.log.WithFields(util.Fields{"conn_id": p.ConnID, "dashboards": r.reg.dashboards}).Info("dashboard registered")
	r.sendVehicleList(p)
	r.renegotiateStream(false)
}

func (r *Router) control(p *Peer, c model.Control) {
	switch p.Role {
	case RoleVehicle:
		r.stats.Rejected++
		r.log.WithFields(util.Fields{"conn_id": p.ConnID, "vehicle_id": p.VehicleID}).Warn("vehicles may not send commands")
		return
	case RoleUnknown:
		r.promote(p)
	}
	if _, err := r.forward(p.ConnID, c); err != nil {
		r.log.WithError(err).WithField("conn_id", p.ConnID).Warn("command dropped")
	}
}

// InjectControl forwards a command that did not come from a connection,
// such as the HTTP control API. It returns the vehicle id it went to.
func (r *Router) InjectControl(c model.Control) (string, error) {
	return r.forward("", c)
}

// forward resolves the target vehicle and sends c to it. Resolution is an
// exact id match, or the first registered vehicle when no id is given. The
// origin connection is never a target.
func (r *Router) forward(origin string, c model.Control) (string, error) {
	if _, ok := model.ParseCommand(c.Command); !ok {
		r.log.WithField("command", c.Command).Warn("unknown command, sending stop")
		c.Command = model.CmdStop.String()
	}

	var target *Peer
	if c.VehicleID != "" {
		if v, ok := r.reg.vehicleByID(c.VehicleID); ok && v.ConnID != origin {
			target = v
		}
	} else {
		for _, id := range r.reg.vehicles {
			if id != origin {
				target, _ = r.reg.get(id)
				break
			}
		}
	}
	if target == nil {
		r.stats.Dropped++
		return "", fmt.Errorf("%w: %q", ErrNoVehicle, c.VehicleID)
	}

	c.Type = model.TypeControl
	c.VehicleID = target.VehicleID
	data, err := parser.Encode(c)
	if err != nil {
		return "", err
	}
	if err := r.send.SendText(target.ConnID, data); err != nil {
		r.fail(target.ConnID, err)
		return "", err
	}
	r.stats.Forwarded++
	r.log.WithFields(util.Fields{"vehicle_id": target.VehicleID, "command": c.Command}).Debug("command forwarded")
	return target.VehicleID, nil
}

func (r *Router) telemetry(p *Peer, t model.Telemetry) {
	if p.Role == RoleVehicle {
		r.stats.Dropped++
		return
	}
	r.PublishTelemetry(t, p.ConnID)
}

// PublishTelemetry sends a target report to every vehicle and dashboard
// except the origin connection.
func (r *Router) PublishTelemetry(t model.Telemetry, origin string) {
	t.Type = model.TypeTelemetry
	data, err := parser.Encode(t)
	if err != nil {
		r.log.WithError(err).Error("encode telemetry")
		return
	}
	r.broadcastText(RoleVehicle, data, origin)
	r.broadcastText(RoleDashboard, data, origin)
	if r.hooks.OnTelemetry != nil {
		r.hooks.OnTelemetry(t)
	}
}

func (r *Router) status(p *Peer, s model.VehicleStatus) {
	if p.Role != RoleVehicle {
		r.stats.Dropped++
		r.log.WithField("conn_id", p.ConnID).Debug("status from non-vehicle ignored")
		return
	}
	data, err := parser.Encode(s)
	if err != nil {
		return
	}
	r.broadcastText(RoleDashboard, data, p.ConnID)
	if r.hooks.OnStatus != nil {
		r.hooks.OnStatus(s)
	}
}

// HandleBinary relays a video frame from a vehicle to every dashboard.
func (r *Router) HandleBinary(connID string, data []byte) {
	p, ok := r.reg.get(connID)
	if !ok || p.Role != RoleVehicle {
		r.stats.Dropped++
		r.log.WithField("conn_id", connID).Debug("binary from non-vehicle dropped")
		return
	}
	r.relayFrame(model.SourceVehicleCam, p.VehicleID, data, connID)
}

// PublishFrame relays a frame produced at the base station itself.
func (r *Router) PublishFrame(source string, data []byte) {
	r.relayFrame(source, "", data, "")
}

func (r *Router) relayFrame(source, vehicleID string, data []byte, origin string) {
	tag, err := parser.Encode(parser.FrameTagMessage(source, vehicleID))
	if err != nil {
		return
	}
	var dead []string
	for _, d := range r.reg.withRole(RoleDashboard) {
		if d.ConnID == origin {
			continue
		}
		if err := r.send.SendFrame(d.ConnID, tag, data); err != nil {
			dead = append(dead, d.ConnID)
			continue
		}
		r.stats.FramesRelayed++
	}
	for _, id := range dead {
		r.fail(id, errors.New("frame relay failed"))
	}
}

func (r *Router) broadcastText(role Role, data []byte, origin string) {
	var dead []string
	for _, p := range r.reg.withRole(role) {
		if p.ConnID == origin {
			continue
		}
		if err := r.send.SendText(p.ConnID, data); err != nil {
			dead = append(dead, p.ConnID)
		}
	}
	for _, id := range dead {
		r.fail(id, errors.New("broadcast failed"))
	}
}

func (r *Router) sendVehicleList(p *Peer) {
	data, err := parser.Encode(parser.VehicleListMessage(r.reg.vehicleIDs()))
	if err != nil {
		return
	}
	if err := r.send.SendText(p.ConnID, data); err != nil {
		r.fail(p.ConnID, err)
	}
}

func (r *Router) vehicleListChanged() {
	ids := r.reg.vehicleIDs()
	data, err := parser.Encode(parser.VehicleListMessage(ids))
	if err != nil {
		return
	}
	r.stats.VehicleNotices++
	r.broadcastText(RoleDashboard, data, "")
	if r.hooks.OnVehicles != nil {
		r.hooks.OnVehicles(ids)
	}
}

// renegotiateStream tells every vehicle the viewer count when the count
// crossed zero, or unconditionally when force is set.
func (r *Router) renegotiateStream(force bool) {
	on := r.reg.dashboards > 0
	if !force && on == r.streamOn {
		return
	}
	r.streamOn = on
	data, err := parser.Encode(parser.StreamStatusMessage(r.reg.dashboards))
	if err != nil {
		return
	}
	r.stats.StreamNotices++
	r.log.WithFields(util.Fields{"enable": on, "viewers": r.reg.dashboards}).Info("stream status")
	r.broadcastText(RoleVehicle, data, "")
}

// fail drops a peer whose send failed.
func (r *Router) fail(connID string, err error) {
	if _, ok := r.reg.get(connID); !ok {
		return
	}
	r.stats.SendFailures++
	r.log.WithError(err).WithField("conn_id", connID).Warn("send failed, removing peer")
	r.send.Close(connID)
	r.Disconnect(connID)
}

// Vehicles lists registered vehicle ids in registration order.
func (r *Router) Vehicles() []string { return r.reg.vehicleIDs() }

// Dashboards is the number of connected dashboards.
func (r *Router) Dashboards() int { return r.reg.dashboards }

// Peers snapshots every record in connection order.
func (r *Router) Peers() []Peer {
	out := make([]Peer, 0, len(r.reg.order))
	for _, id := range r.reg.order {
		out = append(out, *r.reg.peers[id])
	}
	return out
}

// Stats returns the traffic counters.
func (r *Router) Stats() Stats { return r.stats }
