package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/microfm/pkg/presets"
	"github.com/dougsko/microfm/pkg/protocol"
)

// SocketClient represents a client connection to the core engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SetTimeout changes the per-command dial and I/O timeout
func (c *SocketClient) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// call sends cmd and fails on an error response
func (c *SocketClient) call(cmd string) (*protocol.Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s error: %s", cmd, resp.Error)
	}
	return resp, nil
}

// GetStatus gets the current radio status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	resp, err := c.call(protocol.CmdStatus)
	if err != nil {
		return nil, err
	}

	var status protocol.Status
	if err := resp.Decode("status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetPresets lists the preset slots
func (c *SocketClient) GetPresets() ([]presets.Slot, error) {
	resp, err := c.call(protocol.CmdPresets)
	if err != nil {
		return nil, err
	}

	var list protocol.Presets
	if err := resp.Decode("presets", &list); err != nil {
		return nil, err
	}
	return list.Slots, nil
}

// GetMirror dumps the tuner register mirrors
func (c *SocketClient) GetMirror() (*protocol.Mirror, error) {
	resp, err := c.call(protocol.CmdMirror)
	if err != nil {
		return nil, err
	}

	var m protocol.Mirror
	if err := resp.Decode("mirror", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Press queues a front panel button press by name ("seek-up", "memory")
func (c *SocketClient) Press(button string) error {
	_, err := c.call(fmt.Sprintf("%s:%s", protocol.CmdPress, button))
	return err
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	_, err := c.call(protocol.CmdPing)
	return err
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
