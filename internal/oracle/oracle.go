// Package oracle defines the contract with the external segmentation
// model: point-prompted masks at keyframes and forward propagation of a
// seeded mask through subsequent frames.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmuozan/vidseg/internal/annotate"
	"github.com/jmuozan/vidseg/internal/mask"
)

// ErrResourceExhausted signals that the oracle ran out of accelerator
// memory. It is the only failure class the propagation engine recovers
// from; everything else aborts the run.
var ErrResourceExhausted = errors.New("oracle: resource exhausted")

// RejectedError is returned when the oracle refuses a set of annotation
// points. The engine skips re-annotation for that keyframe and continues.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("oracle rejected annotation points: %s", e.Reason)
}

// Device selects the execution context an oracle instance is bound to.
// It is passed explicitly at construction instead of living in ambient
// process state, so tests can inject a deterministic CPU configuration.
type Device struct {
	// Kind is the accelerator name the service understands, e.g.
	// "cuda", "mps" or "cpu".
	Kind string
	// MixedPrecision enables reduced-precision inference where the
	// device supports it.
	MixedPrecision bool
}

// CPUDevice is the slow, always-available fallback context.
func CPUDevice() Device {
	return Device{Kind: "cpu", MixedPrecision: false}
}

// ObjectMask pairs an object id with its mask for one frame.
type ObjectMask struct {
	ID   int
	Mask *mask.Mask
}

// Step is one element of a propagation sequence: every tracked object's
// mask at a single frame. Frames arrive in increasing order.
type Step struct {
	Frame   int
	Objects []ObjectMask
}

// Sequence is the lazy, finite, non-restartable stream produced by a
// propagate call. Next returns (nil, nil) once the stream is exhausted.
// Abandoning a sequence before exhaustion is allowed.
type Sequence interface {
	Next(ctx context.Context) (*Step, error)
}

// Oracle is the black-box segmentation model. Implementations are bound
// to a single Device; relocation means constructing a new instance via a
// Factory, not mutating a live one.
type Oracle interface {
	// Init points the oracle at an extracted frame directory and
	// resets its internal state.
	Init(ctx context.Context, framesDir string) error

	// AddPoints submits annotation points for one frame and returns
	// the resulting seed mask.
	AddPoints(ctx context.Context, frameIdx, objectID int, points []annotate.Point) (*mask.Mask, error)

	// Propagate starts a forward sweep from the oracle's current
	// state through the remaining frames.
	Propagate(ctx context.Context) (Sequence, error)

	// Close releases the oracle's resources.
	Close() error
}

// Factory builds an oracle bound to the given device. The propagation
// engine uses it to construct the degraded fallback instance after a
// resource-exhaustion failure.
type Factory func(Device) (Oracle, error)
