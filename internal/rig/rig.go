package rig

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Rig is an in-memory player rig with a tracked head attached to it. Hosts
// without their own scene graph use it as the pose source for the
// controller and apply the returned deltas to it.
type Rig struct {
	mu        sync.RWMutex
	transform Transform
	head      Transform
}

func New(position mgl64.Vec3, yaw float64, head Transform) *Rig {
	if head.Rotation == (mgl64.Quat{}) {
		head.Rotation = mgl64.QuatIdent()
	}
	return &Rig{
		transform: Transform{Position: position, Rotation: YawQuat(yaw)},
		head:      head,
	}
}

func (r *Rig) RigTransform() Transform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transform
}

func (r *Rig) HeadTransform() Transform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head
}

// SetHead replaces the rig-local head transform, as a tracker update would.
func (r *Rig) SetHead(head Transform) {
	r.mu.Lock()
	r.head = head
	r.mu.Unlock()
}

func (r *Rig) HeadWorld() Transform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return HeadWorld(r.transform, r.head)
}

// Apply rotates the rig by yaw about world up and then adds position to
// its world position.
func (r *Rig) Apply(position mgl64.Vec3, yaw float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if yaw != 0 {
		r.transform.Rotation = YawQuat(yaw).Mul(r.transform.Rotation).Normalize()
	}
	r.transform.Position = r.transform.Position.Add(position)
}

// Teleport moves the rig to position without changing its heading.
func (r *Rig) Teleport(position mgl64.Vec3) {
	r.mu.Lock()
	r.transform.Position = position
	r.mu.Unlock()
}
