package vehicle

import (
	"time"

	"github.com/roman-kulish/groundlink/internal/link"
)

type CommandType string

const (
	CmdAxis       CommandType = "axis"
	CmdArm        CommandType = "arm"
	CmdFlightMode CommandType = "mode"
)

// Command is a user intent for the Bridge. Commands are values so the event
// loop can carry them across goroutines.
type Command interface {
	Type() CommandType
	ReceivedAt() time.Time
	Apply(b *Bridge) error
}

type AxisCommand struct {
	At      time.Time
	Channel link.Channel
	Value   int
}

func (c AxisCommand) Type() CommandType     { return CmdAxis }
func (c AxisCommand) ReceivedAt() time.Time { return c.At }
func (c AxisCommand) Apply(b *Bridge) error { return b.SetAxis(c.Channel, c.Value) }

type ArmCommand struct {
	At    time.Time
	Armed bool
}

func (c ArmCommand) Type() CommandType     { return CmdArm }
func (c ArmCommand) ReceivedAt() time.Time { return c.At }
func (c ArmCommand) Apply(b *Bridge) error { return b.SetArmed(c.Armed) }

type FlightModeCommand struct {
	At   time.Time
	Mode int
}

func (c FlightModeCommand) Type() CommandType     { return CmdFlightMode }
func (c FlightModeCommand) ReceivedAt() time.Time { return c.At }
func (c FlightModeCommand) Apply(b *Bridge) error { return b.SetFlightMode(c.Mode) }
