package vehicle

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/groundlink/internal/link"
)

var (
	// ErrUnknownFlightMode is returned for a flight mode outside the known set
	ErrUnknownFlightMode = errors.New("unknown flight mode")

	// ErrUnknownChannel is returned for an axis channel other than X, Y, Z or R
	ErrUnknownChannel = errors.New("unknown control channel")
)

// SetAxis records a manual control input. The value goes to the State only;
// when it differs from the stored value the resulting axis event forwards it
// to the Link. Repeating the current value is a no-op, also towards the Link.
//
// The returned error is the Link's failure to accept the forwarded value, if
// any. No clamping is applied.
func (b *Bridge) SetAxis(ch link.Channel, value int) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, int(ch))
	}

	b.forwardErr = nil
	b.state.SetAxis(ch, value)

	err := b.forwardErr
	b.forwardErr = nil
	return err
}

// SetArmed issues arm or disarm on the Link. It is a transition command and
// is never deduplicated: two calls with the same argument send two commands.
func (b *Bridge) SetArmed(armed bool) error {
	var err error
	if armed {
		b.logger.Info("arming vehicle")
		err = b.link.Arm()
	} else {
		b.logger.Info("disarming vehicle")
		err = b.link.Disarm()
	}

	if err != nil {
		err = fmt.Errorf("setting armed=%t: %w", armed, err)
		b.commandFailed(err)
	}
	return err
}

// SetFlightMode maps a user mode index onto exactly one Link mode change.
// Indices follow link.Mode (0 RETURN through 5 AUTO_LOITER). Anything else is
// rejected with ErrUnknownFlightMode and nothing is sent.
func (b *Bridge) SetFlightMode(mode int) error {
	m := link.Mode(mode)
	if !m.Valid() {
		err := fmt.Errorf("%w: %d", ErrUnknownFlightMode, mode)
		b.logger.Warn(err.Error())
		return err
	}

	b.logger.Info("setting flight mode", slog.String("mode", m.String()))
	if err := b.link.SetMode(m); err != nil {
		err = fmt.Errorf("setting flight mode %s: %w", m, err)
		b.commandFailed(err)
		return err
	}
	return nil
}
