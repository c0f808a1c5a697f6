package engine

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dougsko/microfm/pkg/config"
	"github.com/dougsko/microfm/pkg/controller"
	"github.com/dougsko/microfm/pkg/hardware"
	"github.com/dougsko/microfm/pkg/logging"
	"github.com/dougsko/microfm/pkg/nvram"
	"github.com/dougsko/microfm/pkg/presets"
	"github.com/dougsko/microfm/pkg/protocol"
	"github.com/dougsko/microfm/pkg/tuner"
)

// Version is reported in STATUS responses.
const Version = "0.1.0-dev"

// Snapshot is the state published after every tick. Snapshots are never
// modified once published.
type Snapshot struct {
	Time       time.Time
	Ticks      uint64
	Tuner      tuner.Status
	Controller controller.State
	Lamps      protocol.Lamps
	Write      tuner.WriteMirror
	Read       tuner.ReadMirror
	Presets    []presets.Slot
	Wear       *protocol.Wear
}

// CoreEngine runs the radio's main loop on one goroutine and serves the
// Unix socket protocol from published snapshots.
type CoreEngine struct {
	config     *config.Config
	socketPath string
	listener   net.Listener
	running    bool
	mutex      sync.RWMutex
	startTime  time.Time
	log        *logging.Component

	parts      *Parts
	storage    *countingDevice
	driver     *tuner.Driver
	controller *controller.Controller
	hardware   *hardware.HardwareManager

	snapshot atomic.Pointer[Snapshot]

	// Owned by the loop goroutine.
	ticks       uint64
	lastSample  controller.Buttons
	lastErr     string
	seenWrites  uint64
	presetList  []presets.Slot
	wear        *protocol.Wear
	listedOnce  bool
	lastDisplay string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoreEngine wires the tuner driver and controller around parts.
func NewCoreEngine(cfg *config.Config, socketPath string, parts *Parts) *CoreEngine {
	storage := &countingDevice{Device: parts.Storage}
	driver := tuner.NewDriver(parts.Bus,
		tuner.WithAddress(uint8(cfg.Tuner.WriteAddress)),
		tuner.WithSettleDelay(config.Millis(cfg.Tuner.SettleDelay)),
	)

	settings := controller.Settings{
		VolumeSaveTicks:  cfg.Controller.VolumeSaveTicks,
		ChannelSaveTicks: cfg.Controller.ChannelSaveTicks,
		MemoryIdleTicks:  cfg.Controller.MemoryIdleTicks,
		RecallSettle:     config.Millis(cfg.Controller.RecallSettle),
		FormatOnBoot:     cfg.Presets.FormatOnBoot,
		Sleep:            time.Sleep,
	}
	layout := nvram.Layout{Base: uint16(cfg.Storage.BaseAddress)}

	return &CoreEngine{
		config:     cfg,
		socketPath: socketPath,
		startTime:  time.Now(),
		log:        logging.For("engine"),
		parts:      parts,
		storage:    storage,
		driver:     driver,
		controller: controller.New(driver, storage, layout, parts.Hardware, settings),
		hardware:   parts.Hardware,
	}
}

// Start initializes the front panel, boots the radio, opens the socket and
// starts the tick loop.
func (e *CoreEngine) Start() error {
	if err := e.hardware.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware manager: %w", err)
	}

	if err := e.boot(); err != nil {
		e.hardware.Close()
		return err
	}

	// Remove existing socket file
	os.Remove(e.socketPath)

	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		e.hardware.Close()
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}
	e.listener = listener

	if err := os.Chmod(e.socketPath, 0660); err != nil {
		e.log.Warnf("failed to set socket permissions: %v", err)
	}
	e.log.Infof("listening on %s", e.socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.mutex.Lock()
	e.running = true
	e.mutex.Unlock()

	e.wg.Add(2)
	go e.run(ctx)
	go e.acceptConnections()

	return nil
}

// Stop stops the tick loop and the socket server and releases the parts.
func (e *CoreEngine) Stop() error {
	e.mutex.Lock()
	e.running = false
	e.mutex.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	if e.listener != nil {
		e.listener.Close()
	}
	e.wg.Wait()

	if e.hardware != nil {
		e.hardware.Close()
	}
	if err := e.parts.Close(); err != nil {
		e.log.Warnf("error closing devices: %v", err)
	}

	os.Remove(e.socketPath)
	return nil
}

// Snapshot returns the most recently published state.
func (e *CoreEngine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Press queues a remote button press for the next tick.
func (e *CoreEngine) Press(b controller.Buttons) error {
	if b == 0 {
		return fmt.Errorf("no button given")
	}
	if !e.hardware.Virtual().Press(b) {
		return fmt.Errorf("button queue full")
	}
	return nil
}

func (e *CoreEngine) boot() error {
	sample, err := e.hardware.Sample()
	if err != nil {
		e.log.Warnf("boot sample failed: %v", err)
	} else {
		e.lastSample = sample
	}
	if err := e.controller.Boot(sample); err != nil {
		return fmt.Errorf("failed to boot radio: %w", err)
	}
	e.show()
	e.publish()
	return nil
}

func (e *CoreEngine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.step()
		}
	}
}

// step runs one controller tick and publishes the result. A failed button
// read repeats the last good sample so a held button gives no new edge.
func (e *CoreEngine) step() {
	sample, err := e.hardware.Sample()
	if err != nil {
		e.report(err)
		sample |= e.lastSample
	} else {
		e.lastSample = sample
	}
	e.report(e.controller.Tick(sample))
	e.ticks++
	e.show()
	e.publish()
}

// report logs tick errors once per distinct message.
func (e *CoreEngine) report(err error) {
	if err == nil {
		if e.lastErr != "" {
			e.log.Infof("tick errors cleared")
			e.lastErr = ""
		}
		return
	}
	if msg := err.Error(); msg != e.lastErr {
		e.log.Warnf("tick %d: %v", e.ticks, err)
		e.lastErr = msg
	}
}

func (e *CoreEngine) show() {
	buf := e.controller.State().Display
	if err := e.hardware.Show(buf); err != nil {
		e.log.Warnf("display update failed: %v", err)
	}
	if text := buf.String(); text != e.lastDisplay {
		e.log.Debugf("display %q", text)
		e.lastDisplay = text
	}
}

func (e *CoreEngine) publish() {
	if !e.listedOnce || e.storage.writes != e.seenWrites {
		e.refreshStorage()
	}

	w, r := e.driver.Mirror()
	stereo, preset := e.hardware.Lamps()
	e.snapshot.Store(&Snapshot{
		Time:       time.Now(),
		Ticks:      e.ticks,
		Tuner:      e.driver.Status(),
		Controller: e.controller.State(),
		Lamps:      protocol.Lamps{Stereo: stereo, Preset: preset},
		Write:      w,
		Read:       r,
		Presets:    e.presetList,
		Wear:       e.wear,
	})
}

// refreshStorage rereads the preset slots and wear counters. The published
// slice is replaced, never modified.
func (e *CoreEngine) refreshStorage() {
	list, err := e.controller.Presets().List()
	if err != nil {
		e.log.Warnf("failed to list presets: %v", err)
		return
	}
	wear, err := summariseWear(e.parts.Storage)
	if err != nil {
		e.log.Warnf("failed to read wear counters: %v", err)
	}
	e.presetList = list
	e.wear = wear
	e.seenWrites = e.storage.writes
	e.listedOnce = true
}

// isRunning checks if the engine is running
func (e *CoreEngine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

// acceptConnections accepts and handles socket connections
func (e *CoreEngine) acceptConnections() {
	defer e.wg.Done()

	for e.isRunning() {
		conn, err := e.listener.Accept()
		if err != nil {
			if e.isRunning() {
				e.log.Warnf("socket accept error: %v", err)
			}
			continue
		}

		go e.handleConnection(conn)
	}
}

// handleConnection handles a single socket connection
func (e *CoreEngine) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := e.handleCommand(cmd)
		conn.Write([]byte(response.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// handleCommand processes a single command
func (e *CoreEngine) handleCommand(cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return e.handleStatus()

	case protocol.CmdPress:
		return e.handlePress(cmd)

	case protocol.CmdPresets:
		return e.handlePresets()

	case protocol.CmdMirror:
		return e.handleMirror()

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

// Status builds the STATUS payload from a snapshot.
func (e *CoreEngine) Status(s *Snapshot) protocol.Status {
	return protocol.Status{
		Tuner:      s.Tuner,
		Controller: s.Controller,
		Lamps:      s.Lamps,
		Wear:       s.Wear,
		Ticks:      s.Ticks,
		Uptime:     time.Since(e.startTime).Round(time.Second).String(),
		StartTime:  e.startTime,
		Version:    Version,
	}
}

func (e *CoreEngine) handleStatus() *protocol.Response {
	s := e.Snapshot()
	if s == nil {
		return protocol.NewErrorResponse("radio not booted")
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"status": e.Status(s),
	})
}

func (e *CoreEngine) handlePress(cmd *protocol.Command) *protocol.Response {
	name, _ := cmd.Args["button"].(string)
	b, err := controller.ParseButton(name)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	if err := e.Press(b); err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	e.log.Debugf("remote press %s", b)
	return protocol.NewSuccessResponse(map[string]interface{}{
		"status": "queued",
		"button": b.String(),
	})
}

func (e *CoreEngine) handlePresets() *protocol.Response {
	s := e.Snapshot()
	if s == nil {
		return protocol.NewErrorResponse("radio not booted")
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"presets": protocol.Presets{Slots: s.Presets},
	})
}

func (e *CoreEngine) handleMirror() *protocol.Response {
	s := e.Snapshot()
	if s == nil {
		return protocol.NewErrorResponse("radio not booted")
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"mirror": protocol.NewMirror(s.Write, s.Read),
	})
}
