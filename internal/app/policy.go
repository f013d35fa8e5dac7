package app

import "github.com/beaconlabs/signaling/internal/domain"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
	NoAction
)

// Policy decides what happens to a member whose outbound buffer is full.
type Policy interface {
	OnBackpressure(conn domain.ConnID) BackpressureAction
}

// DropPolicy skips the delivery and keeps the member; a slow peer misses one
// frame instead of stalling the fan-out.
type DropPolicy struct{}

func (DropPolicy) OnBackpressure(domain.ConnID) BackpressureAction { return DropFrame }

// KickPolicy evicts members that cannot keep up.
type KickPolicy struct{}

func (KickPolicy) OnBackpressure(domain.ConnID) BackpressureAction { return KickMember }
