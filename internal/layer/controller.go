package layer

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNoLayers   = errors.New("no layers available")
	ErrOutOfRange = errors.New("layer index out of range")
)

// Controller runs the switch protocol: at most one request is pending, a new
// request supersedes the pending one, and outcomes are matched by token so a
// superseded request's late answer is ignored even when both requests target
// the same layer. Resolved outcomes settle back to Idle immediately; the last
// one is kept for display. Controller is not safe for concurrent use.
type Controller struct {
	layers   []Descriptor
	current  int
	pending  *Request
	last     SwitchState
	newToken func() string
}

func NewController() *Controller {
	return &Controller{
		current:  -1,
		newToken: uuid.NewString,
	}
}

// Connected installs the layer list announced by a successful connect and
// drops any in-flight request. An out-of-range current index means unknown.
func (c *Controller) Connected(layers []Descriptor, current int) {
	c.layers = append([]Descriptor(nil), layers...)
	c.current = -1
	if current >= 0 && current < len(c.layers) {
		c.current = current
	}
	c.pending = nil
	c.last = SwitchState{}
}

// Request starts a switch to layers[index], superseding any pending one.
func (c *Controller) Request(index int) (Request, error) {
	if len(c.layers) == 0 {
		return Request{}, ErrNoLayers
	}
	if index < 0 || index >= len(c.layers) {
		return Request{}, errors.Wrapf(ErrOutOfRange, "index %d, have %d layers", index, len(c.layers))
	}
	req := Request{
		Token: c.newToken(),
		Index: index,
		Layer: c.layers[index],
	}
	c.pending = &req
	return req, nil
}

// PendingToken reports the token of the in-flight request, if any.
func (c *Controller) PendingToken() (string, bool) {
	if c.pending == nil {
		return "", false
	}
	return c.pending.Token, true
}

// Succeed resolves the pending request if token matches it. The returned
// state is the transient Succeeded outcome; the controller itself is Idle
// again afterwards.
func (c *Controller) Succeed(token string) (SwitchState, bool) {
	req, ok := c.take(token)
	if !ok {
		return SwitchState{}, false
	}
	c.current = req.Index
	c.last = SwitchState{Kind: Succeeded, Target: &req.Layer, Token: req.Token}
	return c.last.clone(), true
}

// Fail resolves the pending request as failed. The current layer is left
// alone since the engine never switched.
func (c *Controller) Fail(token, reason string) (SwitchState, bool) {
	req, ok := c.take(token)
	if !ok {
		return SwitchState{}, false
	}
	c.last = SwitchState{Kind: Failed, Target: &req.Layer, Token: req.Token, Reason: reason}
	return c.last.clone(), true
}

func (c *Controller) take(token string) (Request, bool) {
	if c.pending == nil || c.pending.Token != token {
		return Request{}, false
	}
	req := *c.pending
	c.pending = nil
	return req, true
}

// Reset forgets layers, requests and outcomes.
func (c *Controller) Reset() {
	c.layers = nil
	c.current = -1
	c.pending = nil
	c.last = SwitchState{}
}

// State is Pending while a request is in flight and Idle otherwise.
func (c *Controller) State() SwitchState {
	if c.pending == nil {
		return SwitchState{Kind: Idle}
	}
	target := c.pending.Layer
	return SwitchState{Kind: Pending, Target: &target, Token: c.pending.Token}
}

// LastOutcome is the most recent Succeeded or Failed resolution, or Idle.
func (c *Controller) LastOutcome() SwitchState {
	return c.last.clone()
}

func (c *Controller) Layers() []Descriptor {
	return append([]Descriptor(nil), c.layers...)
}

// Current returns the active layer, if known.
func (c *Controller) Current() (Descriptor, bool) {
	if c.current < 0 || c.current >= len(c.layers) {
		return Descriptor{}, false
	}
	return c.layers[c.current], true
}

func (c *Controller) CurrentIndex() int {
	return c.current
}
