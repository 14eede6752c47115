// Package automation defines the boundary between the inspector and an
// accessibility backend. The inspector only ever talks to a backend through
// Facade; element handles are opaque and may become invalid at any time.
package automation

import (
	"context"
	"errors"
	"fmt"
)

// ErrElementNotAvailable is returned when an element can no longer be
// resolved, usually because the underlying UI element has gone away.
var ErrElementNotAvailable = errors.New("element not available")

// Element is an opaque handle to one node of an automation tree. Two handles
// referring to the same underlying element must compare equal through
// Facade.Equal; RuntimeID is only a hint for logging and display.
type Element interface {
	RuntimeID() string
}

// Rect is the on-screen bounding rectangle of an element.
type Rect struct {
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.Width && y < r.Y+r.Height
}

func (r Rect) String() string {
	return fmt.Sprintf("{X=%d,Y=%d,Width=%d,Height=%d}", r.X, r.Y, r.Width, r.Height)
}

// Info holds the identifying properties of an element.
type Info struct {
	RuntimeID    string
	Name         string
	ControlType  string
	AutomationID string
	ClassName    string
	Bounds       Rect
	IsEnabled    bool
	IsOffscreen  bool
}

// Detail is a single property row shown for the selected element.
type Detail struct {
	Key       string
	Value     string
	Important bool
}

// DetailGroup is a titled group of property rows (identification, state,
// supported patterns, ...).
type DetailGroup struct {
	Name    string
	Details []Detail
}

// Facade is the capability set the inspector needs from a backend.
//
// Parent returns a nil element and no error for the root. Parent, Children,
// Describe and Details wrap ErrElementNotAvailable when the element vanished.
type Facade interface {
	Root() Element
	Parent(ctx context.Context, el Element) (Element, error)
	Children(ctx context.Context, el Element) ([]Element, error)
	Equal(a, b Element) bool
	Describe(ctx context.Context, el Element) (Info, error)
	Details(ctx context.Context, el Element) ([]DetailGroup, error)
}

// HoverProbe reports the element currently under the pointer.
type HoverProbe interface {
	ElementUnderPointer(ctx context.Context) (Element, error)
}

// FocusProbe reports the element that currently has keyboard focus.
type FocusProbe interface {
	FocusedElement(ctx context.Context) (Element, error)
}

// Backend is what an automation type yields when opened: the facade plus the
// probes the observers poll. Close releases backend resources.
type Backend interface {
	Facade
	HoverProbe
	FocusProbe
	Close() error
}
