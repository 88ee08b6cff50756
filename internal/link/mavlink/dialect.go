package mavlink

import (
	"fmt"
	"math"

	"github.com/bluenviron/gomavlib/v3/pkg/dialect"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// Dialect holds the common dialect messages the link exchanges with the
// vehicle. Frames of any other message are skipped.
var Dialect = &dialect.Dialect{
	Version: 3,
	Messages: []message.Message{
		&common.MessageHeartbeat{},
		&common.MessageSysStatus{},
		&common.MessageSetMode{},
		&common.MessageGlobalPositionInt{},
		&common.MessageManualControl{},
		&common.MessageCommandLong{},
		&common.MessageStatustext{},
	},
}

// dialectRW is read-only once initialized and shared by every parser and
// writer.
var dialectRW = mustReadWriter(Dialect)

func mustReadWriter(d *dialect.Dialect) *dialect.ReadWriter {
	rw := &dialect.ReadWriter{Dialect: d}
	if err := rw.Initialize(); err != nil {
		panic(fmt.Sprintf("mavlink: invalid dialect: %v", err))
	}
	return rw
}

const mavlinkVersion = 3

// gcsHeartbeat is what the ground station announces itself with.
func gcsHeartbeat() *common.MessageHeartbeat {
	return &common.MessageHeartbeat{
		Type:           common.MAV_TYPE_GCS,
		Autopilot:      common.MAV_AUTOPILOT_INVALID,
		SystemStatus:   common.MAV_STATE_ACTIVE,
		MavlinkVersion: mavlinkVersion,
	}
}

func armed(m *common.MessageHeartbeat) bool {
	return m.BaseMode&common.MAV_MODE_FLAG_SAFETY_ARMED != 0
}

// batteryMillivolts returns the SYS_STATUS voltage, zero when the autopilot
// does not know it.
func batteryMillivolts(m *common.MessageSysStatus) int {
	if m.VoltageBattery == math.MaxUint16 {
		return 0
	}
	return int(m.VoltageBattery)
}

// batteryMilliamps returns the SYS_STATUS current, zero when the autopilot
// does not know it. Negative values are charging currents.
func batteryMilliamps(m *common.MessageSysStatus) int {
	if m.CurrentBattery == -1 {
		return 0
	}
	return int(m.CurrentBattery) * 10
}
