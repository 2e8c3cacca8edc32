package charts

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ANIKETSHETTY47/powersense-dashboard/internal/domain"
)

var (
	ErrNotAttached = errors.New("charts: surface not attached")
	ErrNotMounted  = errors.New("charts: surface not mounted")
	ErrDestroyed   = errors.New("charts: instance destroyed")
	ErrClosed      = errors.New("charts: controller closed")
	ErrNoDataset   = errors.New("charts: no dataset for surface")
)

// State is the lifecycle state of one surface.
type State int

const (
	Unmounted State = iota
	Mounted
)

func (s State) String() string {
	if s == Mounted {
		return "MOUNTED"
	}
	return "UNMOUNTED"
}

// Instance is a live rendering context. Destroy must release everything the
// instance holds; Render after Destroy returns ErrDestroyed.
type Instance interface {
	Render(w io.Writer) error
	Destroy()
}

// Factory creates the rendering context for a dataset.
type Factory interface {
	Create(s Surface, d domain.Dataset) (Instance, error)
}

type FactoryFunc func(s Surface, d domain.Dataset) (Instance, error)

func (f FactoryFunc) Create(s Surface, d domain.Dataset) (Instance, error) { return f(s, d) }

type binding struct {
	state    State
	instance Instance
	revision uint64
}

type Stats struct {
	Attached  int `json:"attached"`
	Live      int `json:"live"`
	Created   int `json:"created"`
	Destroyed int `json:"destroyed"`
	Failed    int `json:"failed"`
}

// Controller is the registry from surface to its owned instance. All
// transitions happen under one lock.
type Controller struct {
	mu       sync.Mutex
	factory  Factory
	bindings map[Surface]*binding
	stats    Stats
	closed   bool
}

func NewController(f Factory) *Controller {
	return &Controller{factory: f, bindings: make(map[Surface]*binding)}
}

// Attach makes a surface available. Attaching twice is a no-op.
func (c *Controller) Attach(s Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.bindings[s]; !ok {
		c.bindings[s] = &binding{state: Unmounted}
	}
	return nil
}

// Detach destroys the surface's instance and forgets the surface.
func (c *Controller) Detach(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bindings[s]; ok {
		c.release(b)
		delete(c.bindings, s)
	}
}

// Mount creates an instance for d, destroying any existing one first.
func (c *Controller) Mount(s Surface, d domain.Dataset, revision uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	b, ok := c.bindings[s]
	if !ok {
		return fmt.Errorf("mount %s: %w", s, ErrNotAttached)
	}
	return c.mount(s, b, d, revision)
}

func (c *Controller) mount(s Surface, b *binding, d domain.Dataset, revision uint64) error {
	c.release(b)
	if d == nil {
		return fmt.Errorf("mount %s: %w", s, ErrNoDataset)
	}
	inst, err := c.factory.Create(s, d)
	if err != nil {
		c.stats.Failed++
		return fmt.Errorf("mount %s: %w", s, err)
	}
	b.instance = inst
	b.state = Mounted
	b.revision = revision
	c.stats.Created++
	return nil
}

// Unmount destroys the instance but keeps the surface attached.
func (c *Controller) Unmount(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bindings[s]; ok {
		c.release(b)
	}
}

func (c *Controller) release(b *binding) {
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
		c.stats.Destroyed++
	}
	b.state = Unmounted
}

// Apply brings every attached surface up to date with snap. Nothing happens
// while loading. A surface is rebuilt only when its revision moved; static
// surfaces are built once.
func (c *Controller) Apply(snap *domain.Snapshot, loading bool) error {
	if loading || snap == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	var errs []error
	for _, s := range Surfaces {
		b, ok := c.bindings[s]
		if !ok {
			continue
		}
		rev := snap.Seq
		if s.Static() {
			rev = 0
		}
		if b.state == Mounted && b.revision == rev {
			continue
		}
		if err := c.mount(s, b, DatasetFor(snap, s), rev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Render writes the surface's current image. The instance itself never
// leaves the controller.
func (c *Controller) Render(s Surface, w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bindings[s]
	if !ok {
		return ErrNotAttached
	}
	if b.state != Mounted || b.instance == nil {
		return ErrNotMounted
	}
	return b.instance.Render(w)
}

func (c *Controller) State(s Surface) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bindings[s]; ok {
		return b.state
	}
	return Unmounted
}

// Revision returns the dataset revision a mounted surface was built from.
func (c *Controller) Revision(s Surface) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bindings[s]
	if !ok || b.state != Mounted {
		return 0, false
	}
	return b.revision, true
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	st.Attached = len(c.bindings)
	for _, b := range c.bindings {
		if b.instance != nil {
			st.Live++
		}
	}
	return st
}

// Close destroys every instance. The controller cannot be reused.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s, b := range c.bindings {
		c.release(b)
		delete(c.bindings, s)
	}
	c.closed = true
}
