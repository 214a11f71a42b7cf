// Package network is the opaque transport interface consumed by the
// scheduler (spec §6: "Network: parcel_launch(p) — send a parcel to its
// target locality (local or remote). Scheduler treats this as opaque.").
// MPI/Photon transports, wire serialization, and remote delivery are out
// of scope; this package only defines the seam and a loopback
// implementation good enough to run single-locality and simulated SPMD
// runs over goroutines instead of real localities.
package network

import "github.com/go-foundations/parcelsched/parcel"

// Launcher sends a parcel to its target locality. The scheduler never
// inspects what happens after Launch returns.
type Launcher interface {
	Launch(p *parcel.Parcel) error
}

// SpawnFunc matches scheduler.Scheduler.Spawn; LocalLauncher holds one
// instead of a concrete *scheduler.Scheduler to avoid an import cycle
// (scheduler depends on network for its default Launcher, not the
// reverse).
type SpawnFunc func(p *parcel.Parcel) error

// LocalLauncher loops a parcel back into the local scheduler's Spawn,
// i.e. it treats every address as local. scheduler.New installs one as
// the default Launcher, for single-locality and simulated SPMD runs alike.
type LocalLauncher struct {
	spawn SpawnFunc
}

// NewLocalLauncher builds a Launcher that re-enters spawn for every
// parcel handed to it.
func NewLocalLauncher(spawn SpawnFunc) *LocalLauncher {
	return &LocalLauncher{spawn: spawn}
}

func (l *LocalLauncher) Launch(p *parcel.Parcel) error {
	return l.spawn(p)
}
