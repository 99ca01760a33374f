// Package surface drives the remote day-view calendar that courts are reserved through.
package surface

import (
	"context"
	"errors"
)

// ErrSessionClosed marks failures caused by the browser session going away rather than by
// the page misbehaving.
var ErrSessionClosed = errors.New("surface session closed")

// SlotCandidate is one clickable reservation affordance scraped from the day view.
// Ref addresses the element for Click; everything else is text the matcher inspects.
type SlotCandidate struct {
	Ref         string            `json:"ref"`
	Label       string            `json:"label"`
	Href        string            `json:"href"`
	ParentLabel string            `json:"parentLabel"`
	ParentTime  string            `json:"parentTime"`
	ParentHref  string            `json:"parentHref"`
	Text        string            `json:"text"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// UnavailableIndicator is one "fully booked" marker scraped from the day view.
type UnavailableIndicator struct {
	Time        string `json:"time"`
	Label       string `json:"label"`
	Href        string `json:"href"`
	ParentLabel string `json:"parentLabel"`
	ParentTime  string `json:"parentTime"`
}

// Button is a clickable element found inside an open dialog.
type Button struct {
	Ref     string `json:"ref"`
	Text    string `json:"text"`
	Primary bool   `json:"primary"`
}

// Navigator is the part of the surface the navigation driver needs.
type Navigator interface {
	CurrentDateText(ctx context.Context) (string, error)
	StepForward(ctx context.Context) error
	StepBackward(ctx context.Context) error
}

// Session is one exclusively owned connection to the remote calendar.
type Session interface {
	Navigator
	// Reveal scrolls and expands the day view so lazily rendered slots exist in the page.
	Reveal(ctx context.Context) error
	ScrapeSlotCandidates(ctx context.Context) ([]SlotCandidate, error)
	ScrapeUnavailableIndicators(ctx context.Context) ([]UnavailableIndicator, error)
	Click(ctx context.Context, ref string) error
	FindVisibleButtonByText(ctx context.Context, label string) (ref string, found bool, err error)
	ListButtonsInOpenDialog(ctx context.Context) ([]Button, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Opener establishes fresh sessions. Every Open must be paired with Session.Close.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}
