package mavlink

import (
	"fmt"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/roman-kulish/groundlink/internal/link"
)

// PX4 main modes
const (
	px4MainManual   = 1
	px4MainAltCtl   = 2
	px4MainPosCtl   = 3
	px4MainAuto     = 4
	px4MainAcro     = 5
	px4MainOffboard = 6
	px4MainStab     = 7
)

// PX4 auto sub modes
const (
	px4AutoReady   = 1
	px4AutoTakeoff = 2
	px4AutoLoiter  = 3
	px4AutoMission = 4
	px4AutoRTL     = 5
	px4AutoLand    = 6
)

type px4Mode struct {
	main, sub uint8
}

var px4Modes = map[link.Mode]px4Mode{
	link.ModeReturn:         {px4MainAuto, px4AutoRTL},
	link.ModeManual:         {px4MainManual, 0},
	link.ModeAssistAltitude: {px4MainAltCtl, 0},
	link.ModeAssistPosition: {px4MainPosCtl, 0},
	link.ModeAutoMission:    {px4MainAuto, px4AutoMission},
	link.ModeAutoLoiter:     {px4MainAuto, px4AutoLoiter},
}

// customMode packs a PX4 mode into the custom_mode field of SET_MODE and
// HEARTBEAT.
func (m px4Mode) customMode() uint32 {
	return uint32(m.main)<<16 | uint32(m.sub)<<24
}

// setModeMessage builds the SET_MODE request for m.
func setModeMessage(m link.Mode, target uint8) (*common.MessageSetMode, error) {
	px4, ok := px4Modes[m]
	if !ok {
		return nil, fmt.Errorf("no PX4 mode for %s", m)
	}

	return &common.MessageSetMode{
		TargetSystem: target,
		BaseMode:     common.MAV_MODE(common.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED),
		CustomMode:   px4.customMode(),
	}, nil
}

// ModeName describes a PX4 custom_mode as reported in HEARTBEAT.
func ModeName(customMode uint32) string {
	main := uint8(customMode >> 16)
	sub := uint8(customMode >> 24)

	for m, px4 := range px4Modes {
		if px4.main == main && px4.sub == sub {
			return m.String()
		}
	}

	switch main {
	case px4MainAuto:
		switch sub {
		case px4AutoReady:
			return "AUTO_READY"
		case px4AutoTakeoff:
			return "AUTO_TAKEOFF"
		case px4AutoLand:
			return "AUTO_LAND"
		}
	case px4MainAcro:
		return "ACRO"
	case px4MainOffboard:
		return "OFFBOARD"
	case px4MainStab:
		return "STABILIZED"
	}
	return fmt.Sprintf("custom(%d/%d)", main, sub)
}
