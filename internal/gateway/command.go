package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/groundlink/internal/link"
	"github.com/roman-kulish/groundlink/internal/vehicle"
)

var (
	// ErrUnknownCommand is returned for a command type other than axis, arm or mode
	ErrUnknownCommand = errors.New("unknown command")

	// ErrBadRequest is returned when a command body cannot be decoded
	ErrBadRequest = errors.New("bad request")
)

type axisRequest struct {
	Channel string `json:"channel"` // "x", "y", "z" or "r"
	Value   *int   `json:"value"`
}

type armRequest struct {
	Armed *bool `json:"armed"`
}

type modeRequest struct {
	Mode *int `json:"mode"` // 0 RETURN .. 5 AUTO_LOITER
}

// decodeCommand turns a JSON body into the vehicle command of type typ.
// The mode range is checked by the bridge.
func decodeCommand(typ vehicle.CommandType, body []byte, at time.Time) (vehicle.Command, error) {
	switch typ {
	case vehicle.CmdAxis:
		var req axisRequest
		if err := decodeStrict(body, &req); err != nil {
			return nil, err
		}
		if req.Value == nil {
			return nil, fmt.Errorf("%w: value is required", ErrBadRequest)
		}
		ch, err := link.ParseChannel(req.Channel)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", vehicle.ErrUnknownChannel, err)
		}
		return vehicle.AxisCommand{At: at, Channel: ch, Value: *req.Value}, nil

	case vehicle.CmdArm:
		var req armRequest
		if err := decodeStrict(body, &req); err != nil {
			return nil, err
		}
		if req.Armed == nil {
			return nil, fmt.Errorf("%w: armed is required", ErrBadRequest)
		}
		return vehicle.ArmCommand{At: at, Armed: *req.Armed}, nil

	case vehicle.CmdFlightMode:
		var req modeRequest
		if err := decodeStrict(body, &req); err != nil {
			return nil, err
		}
		if req.Mode == nil {
			return nil, fmt.Errorf("%w: mode is required", ErrBadRequest)
		}
		return vehicle.FlightModeCommand{At: at, Mode: *req.Mode}, nil

	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, typ)
	}
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// eventMessage is the wire form of a change event.
type eventMessage struct {
	Kind   string `json:"kind"`
	Value  any    `json:"value"`
	Detail string `json:"detail,omitempty"`
}

func toEventMessage(ev vehicle.Event) eventMessage {
	return eventMessage{
		Kind:   ev.Kind.String(),
		Value:  ev.Value(),
		Detail: ev.Detail,
	}
}
