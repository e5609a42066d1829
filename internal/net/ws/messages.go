package ws

import (
	"encoding/json"
	"fmt"

	"github.com/clover-storm/unit-simulator/internal/sim"
)

const messageCommand = "command"

// Control commands drive the session itself; every other command type is a
// simulation command queued on the core.
const (
	controlStep  = "step"
	controlPlay  = "play"
	controlPause = "pause"
	controlSeek  = "seek"
	controlReset = "reset"
	controlLoad  = "load"
)

type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type controlCommand struct {
	Type     string             `json:"type"`
	Frames   int                `json:"frames,omitempty"`
	Frame    int                `json:"frame,omitempty"`
	Snapshot *sim.FrameSnapshot `json:"snapshot,omitempty"`
}

// decodeCommand splits a command payload into either a control command or
// a validated simulation command.
func decodeCommand(data json.RawMessage) (controlCommand, *sim.Command, error) {
	var ctl controlCommand
	if len(data) == 0 {
		return ctl, nil, fmt.Errorf("command without data")
	}
	if err := json.Unmarshal(data, &ctl); err != nil {
		return ctl, nil, fmt.Errorf("decode command: %w", err)
	}
	switch ctl.Type {
	case controlStep, controlPlay, controlPause, controlSeek, controlReset:
		return ctl, nil, nil
	case controlLoad:
		if ctl.Snapshot == nil {
			return ctl, nil, fmt.Errorf("load command without snapshot")
		}
		return ctl, nil, nil
	case "":
		return ctl, nil, fmt.Errorf("command without type")
	}

	var cmd sim.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return ctl, nil, fmt.Errorf("decode %s command: %w", ctl.Type, err)
	}
	if err := cmd.Validate(); err != nil {
		return ctl, nil, err
	}
	return ctl, &cmd, nil
}
