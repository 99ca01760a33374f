// Package surfacetest provides scripted in-memory surfaces for tests.
package surfacetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"courtbot/pkg/surface"
)

// Calendar is a day view that moves one day per step and renders its date with Layout.
// Readings, when set, replaces the rendered text with a fixed script (the last entry repeats).
type Calendar struct {
	mu sync.Mutex

	Current  time.Time
	Layout   string
	Readings []string
	// Frozen calendars accept steps without moving.
	Frozen bool
	// StepErrors are returned by successive step calls, nil entries meaning success.
	StepErrors []error
	ReadError  error

	Forward  int
	Backward int
	reads    int
}

func NewCalendar(current time.Time) *Calendar {
	return &Calendar{Current: current, Layout: "Monday, January 2, 2006"}
}

func (c *Calendar) CurrentDateText(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadError != nil {
		return "", c.ReadError
	}
	if len(c.Readings) > 0 {
		index := c.reads
		if index >= len(c.Readings) {
			index = len(c.Readings) - 1
		}
		c.reads++
		return c.Readings[index], nil
	}
	return c.Current.Format(c.Layout), nil
}

func (c *Calendar) StepForward(ctx context.Context) error { return c.step(1) }

func (c *Calendar) StepBackward(ctx context.Context) error { return c.step(-1) }

func (c *Calendar) step(days int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.StepErrors) > 0 {
		next := c.StepErrors[0]
		c.StepErrors = c.StepErrors[1:]
		if next != nil {
			return next
		}
	}
	if days > 0 {
		c.Forward++
	} else {
		c.Backward++
	}
	if !c.Frozen {
		c.Current = c.Current.AddDate(0, 0, days)
	}
	return nil
}

// Session is a scripted surface.Session.
type Session struct {
	*Calendar

	mu             sync.Mutex
	Candidates     []surface.SlotCandidate
	Indicators     []surface.UnavailableIndicator
	VisibleButtons map[string]string
	DialogButtons  []surface.Button
	// OnClick runs after each successful click and may rewrite the scripted page.
	OnClick func(session *Session, ref string)

	RevealError     error
	ScrapeError     error
	ClickError      error
	ScreenshotError error

	Clicked []string
	Reveals int
	closed  bool
}

func (s *Session) Reveal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reveals++
	return s.RevealError
}

func (s *Session) ScrapeSlotCandidates(ctx context.Context) ([]surface.SlotCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ScrapeError != nil {
		return nil, s.ScrapeError
	}
	return append([]surface.SlotCandidate(nil), s.Candidates...), nil
}

func (s *Session) ScrapeUnavailableIndicators(ctx context.Context) ([]surface.UnavailableIndicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ScrapeError != nil {
		return nil, s.ScrapeError
	}
	return append([]surface.UnavailableIndicator(nil), s.Indicators...), nil
}

func (s *Session) Click(ctx context.Context, ref string) error {
	s.mu.Lock()
	if s.ClickError != nil {
		defer s.mu.Unlock()
		return s.ClickError
	}
	s.Clicked = append(s.Clicked, ref)
	hook := s.OnClick
	s.mu.Unlock()
	if hook != nil {
		hook(s, ref)
	}
	return nil
}

func (s *Session) FindVisibleButtonByText(ctx context.Context, label string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for text, ref := range s.VisibleButtons {
		if strings.EqualFold(strings.TrimSpace(text), label) {
			return ref, true, nil
		}
	}
	return "", false, nil
}

func (s *Session) ListButtonsInOpenDialog(ctx context.Context) ([]surface.Button, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]surface.Button(nil), s.DialogButtons...), nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if s.ScreenshotError != nil {
		return nil, s.ScreenshotError
	}
	return []byte("\x89PNG fake"), nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed twice")
	}
	s.closed = true
	return nil
}

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Opener hands out sessions built by Build, numbering attempts from 1.
type Opener struct {
	mu       sync.Mutex
	Build    func(attempt int) (*Session, error)
	Sessions []*Session
	opens    int
}

func (o *Opener) Open(ctx context.Context) (surface.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	session, err := o.Build(o.opens)
	if err != nil {
		return nil, err
	}
	o.Sessions = append(o.Sessions, session)
	return session, nil
}

func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// OpenSessions counts sessions handed out and not yet closed.
func (o *Opener) OpenSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	count := 0
	for _, session := range o.Sessions {
		if !session.IsClosed() {
			count++
		}
	}
	return count
}
