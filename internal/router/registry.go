package router

import (
	"errors"
	"slices"
)

// ErrRegistryFull is returned by Connect when the peer limit is reached.
var ErrRegistryFull = errors.New("router: registry full")

// Role is a peer's announced function.
type Role int

const (
	RoleUnknown Role = iota
	RoleDashboard
	RoleVehicle
)

func (r Role) String() string {
	switch r {
	case RoleDashboard:
		return "dashboard"
	case RoleVehicle:
		return "vehicle"
	default:
		return "unknown"
	}
}

// Peer is one connection's record.
type Peer struct {
	ConnID    string
	Role      Role
	VehicleID string
}

// registry holds at most max peers. Vehicles are kept in registration order,
// which is the fallback order for untargeted commands.
type registry struct {
	max        int
	peers      map[string]*Peer
	order      []string // connection order
	vehicles   []string // conn ids, registration order
	dashboards int
}

func newRegistry(limit int) *registry {
	return &registry{max: limit, peers: map[string]*Peer{}}
}

func (r *registry) add(id string) (*Peer, error) {
	if p, ok := r.peers[id]; ok {
		return p, nil
	}
	if len(r.peers) >= r.max {
		return nil, ErrRegistryFull
	}
	p := &Peer{ConnID: id}
	r.peers[id] = p
	r.order = append(r.order, id)
	return p, nil
}

func (r *registry) get(id string) (*Peer, bool) {
	p, ok := r.peers[id]
	return p, ok
}

// setRole moves p to role, keeping the counters and vehicle order in step.
func (r *registry) setRole(p *Peer, role Role, vehicleID string) {
	switch p.Role {
	case RoleDashboard:
		r.dashboards--
	case RoleVehicle:
		r.vehicles = slices.DeleteFunc(r.vehicles, func(id string) bool { return id == p.ConnID })
	}
	p.Role, p.VehicleID = role, ""
	switch role {
	case RoleDashboard:
		r.dashboards++
	case RoleVehicle:
		p.VehicleID = vehicleID
		r.vehicles = append(r.vehicles, p.ConnID)
	}
}

func (r *registry) remove(id string) (Peer, bool) {
	p, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	// the caller needs the role the peer held
	out := *p
	r.setRole(p, RoleUnknown, "")
	delete(r.peers, id)
	r.order = slices.DeleteFunc(r.order, func(c string) bool { return c == id })
	return out, true
}

// vehicleByID finds the connection registered under vehicleID.
func (r *registry) vehicleByID(vehicleID string) (*Peer, bool) {
	for _, id := range r.vehicles {
		if p := r.peers[id]; p.VehicleID == vehicleID {
			return p, true
		}
	}
	return nil, false
}

func (r *registry) vehicleIDs() []string {
	ids := make([]string, 0, len(r.vehicles))
	for _, id := range r.vehicles {
		ids = append(ids, r.peers[id].VehicleID)
	}
	return ids
}

// withRole lists peers of role in connection order.
func (r *registry) withRole(role Role) []*Peer {
	var out []*Peer
	for _, id := range r.order {
		if p := r.peers[id]; p.Role == role {
			out = append(out, p)
		}
	}
	return out
}
