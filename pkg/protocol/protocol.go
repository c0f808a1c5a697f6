package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dougsko/microfm/pkg/controller"
	"github.com/dougsko/microfm/pkg/presets"
	"github.com/dougsko/microfm/pkg/tuner"
)

// Command represents a command sent to the core engine
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the core engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Lamps is the state of the two front panel indicators
type Lamps struct {
	Stereo bool `json:"stereo"`
	Preset bool `json:"preset"`
}

// Wear summarises storage write counts
type Wear struct {
	TotalWrites   int    `json:"total_writes"`
	HottestCell   uint16 `json:"hottest_cell"`
	HottestWrites int    `json:"hottest_writes"`
}

// Status represents the current daemon status
type Status struct {
	Tuner      tuner.Status     `json:"tuner"`
	Controller controller.State `json:"controller"`
	Lamps      Lamps            `json:"lamps"`
	Wear       *Wear            `json:"wear,omitempty"`
	Ticks      uint64           `json:"ticks"`
	Uptime     string           `json:"uptime"`
	StartTime  time.Time        `json:"start_time"`
	Version    string           `json:"version"`
}

// Mirror is a dump of both register mirrors
type Mirror struct {
	Write       string            `json:"write"`
	Read        string            `json:"read"`
	WriteFields map[string]uint16 `json:"write_fields"`
	ReadFields  map[string]uint16 `json:"read_fields"`
}

// NewMirror formats the driver's register mirrors
func NewMirror(w tuner.WriteMirror, r tuner.ReadMirror) Mirror {
	return Mirror{
		Write:       hexBytes(w[:]),
		Read:        hexBytes(r[:]),
		WriteFields: w.Decode(),
		ReadFields:  r.Decode(),
	}
}

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

// Presets is the response body of the PRESETS command
type Presets struct {
	Slots []presets.Slot `json:"slots"`
}

// ParseCommand parses a text command into a Command struct
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty command")
	}
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(parts[0]),
		Args: make(map[string]interface{}),
	}

	if len(parts) > 1 {
		args := strings.TrimSpace(parts[1])

		switch cmd.Type {
		case CmdPress:
			// PRESS:seek-up
			cmd.Args["button"] = args
		}
	}

	if cmd.Type == CmdPress {
		if b, _ := cmd.Args["button"].(string); b == "" {
			return nil, fmt.Errorf("PRESS requires a button name")
		}
	}

	return cmd, nil
}

// String converts a Response to a JSON string
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// Decode re-encodes the response field key into v
func (r *Response) Decode(key string, v interface{}) error {
	raw, ok := r.Data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Protocol commands
const (
	CmdStatus  = "STATUS"
	CmdPress   = "PRESS"
	CmdPresets = "PRESETS"
	CmdMirror  = "MIRROR"
	CmdQuit    = "QUIT"
	CmdPing    = "PING"
)
