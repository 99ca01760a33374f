package booking

import (
	"courtbot/pkg/diagnostics"
)

type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
	AvailabilityUnknown     AvailabilityStatus = "unknown"
	AvailabilityError       AvailabilityStatus = "error"
)

// Stage is reported as an operation moves through the pipeline.
type Stage string

const (
	StageWaiting     Stage = "waiting"
	StageNavigating  Stage = "navigating"
	StageRevealing   Stage = "revealing"
	StageClassifying Stage = "classifying"
	StageClicking    Stage = "clicking"
	StageConfirming  Stage = "confirming"
	StageVerifying   Stage = "verifying"
	StageDone        Stage = "done"
)

type AvailabilityOutcome struct {
	Status      AvailabilityStatus   `json:"status"`
	Label       string               `json:"label,omitempty"`
	Date        string               `json:"date,omitempty"`
	Channel     string               `json:"channel,omitempty"`
	Message     string               `json:"message"`
	Kind        Kind                 `json:"kind,omitempty"`
	Attempts    int                  `json:"attempts"`
	Diagnostics []diagnostics.Handle `json:"diagnostics,omitempty"`
}

// BookingOutcome is the single result of one Book call. Uncertain means a confirmation
// could not be found after the slot was clicked, so a human has to look.
type BookingOutcome struct {
	Success       bool                 `json:"success"`
	AlreadyBooked bool                 `json:"alreadyBooked,omitempty"`
	Uncertain     bool                 `json:"uncertain,omitempty"`
	Verified      bool                 `json:"verified,omitempty"`
	Label         string               `json:"label,omitempty"`
	Date          string               `json:"date,omitempty"`
	Resource      string               `json:"resource,omitempty"`
	Message       string               `json:"message"`
	Kind          Kind                 `json:"kind,omitempty"`
	Attempts      int                  `json:"attempts"`
	Diagnostics   []diagnostics.Handle `json:"diagnostics,omitempty"`
	Err           error                `json:"-"`
}

// ParseFailed reports whether the outcome came from unreadable date/time text.
func (o BookingOutcome) ParseFailed() bool { return o.Kind == KindParse }

func (o AvailabilityOutcome) ParseFailed() bool { return o.Kind == KindParse }
