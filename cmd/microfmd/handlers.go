package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/microfm/pkg/controller"
	"github.com/dougsko/microfm/pkg/display"
	"github.com/dougsko/microfm/pkg/engine"
	"github.com/dougsko/microfm/pkg/protocol"
	"github.com/dougsko/microfm/pkg/tuner"
)

// handleGetStatus returns radio status via socket
func (d *MicroFMDaemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "running",
		"version":       status.Version,
		"uptime":        status.Uptime,
		"ticks":         status.Ticks,
		"frequency":     status.Tuner.Channel.String(),
		"frequency_khz": status.Tuner.FrequencyKHz,
		"tuner":         status.Tuner,
		"controller":    status.Controller,
		"mode":          status.Controller.Mode.String(),
		"display":       status.Controller.Display.String(),
		"lamps":         status.Lamps,
		"wear":          status.Wear,
	})
}

// handleGetPresets returns the preset slots via socket
func (d *MicroFMDaemon) handleGetPresets(c *gin.Context) {
	slots, err := d.socketClient.GetPresets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"presets": slots,
		"count":   len(slots),
	})
}

// handleGetMirror returns the tuner register mirrors via socket
func (d *MicroFMDaemon) handleGetMirror(c *gin.Context) {
	mirror, err := d.socketClient.GetMirror()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, mirror)
}

// handlePressButton queues a front panel press via socket
func (d *MicroFMDaemon) handlePressButton(c *gin.Context) {
	name := c.Param("name")
	if _, err := controller.ParseButton(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   err.Error(),
			"buttons": controller.ButtonNames(),
		})
		return
	}

	if err := d.socketClient.Press(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "queued",
		"button": name,
	})
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// displayFrame is one front panel update pushed to WebSocket clients.
type displayFrame struct {
	Type         string         `json:"type"`
	Text         string         `json:"text"`
	Display      display.Buffer `json:"display"`
	Mode         string         `json:"mode"`
	InMemory     bool           `json:"in_memory"`
	Volume       int            `json:"volume"`
	Channel      tuner.Channel  `json:"channel"`
	FrequencyKHz int            `json:"frequency_khz"`
	RSSI         uint8          `json:"rssi"`
	Lamps        protocol.Lamps `json:"lamps"`
}

func newDisplayFrame(s *engine.Snapshot) displayFrame {
	return displayFrame{
		Type:         "display",
		Text:         s.Controller.Display.String(),
		Display:      s.Controller.Display,
		Mode:         s.Controller.Mode.String(),
		InMemory:     s.Controller.InMemory,
		Volume:       int(s.Controller.Volume),
		Channel:      s.Tuner.Channel,
		FrequencyKHz: s.Tuner.FrequencyKHz,
		RSSI:         s.Tuner.RSSI,
		Lamps:        s.Lamps,
	}
}

// pressRequest is sent by WebSocket clients to press a button.
type pressRequest struct {
	Press string `json:"press"`
}

// handleDisplayWebSocket streams front panel changes and accepts presses
func (d *MicroFMDaemon) handleDisplayWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		d.log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	d.log.Infof("Display WebSocket client connected from %s", c.Request.RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var req pressRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			b, err := controller.ParseButton(req.Press)
			if err == nil {
				err = d.coreEngine.Press(b)
			}
			if err != nil {
				d.log.Warnf("WebSocket press %q rejected: %v", req.Press, err)
			}
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var last *displayFrame
	for {
		select {
		case <-ticker.C:
			s := d.coreEngine.Snapshot()
			if s == nil {
				continue
			}
			frame := newDisplayFrame(s)
			if last != nil && *last == frame {
				continue
			}
			if err := conn.WriteJSON(frame); err != nil {
				d.log.Warnf("WebSocket write error: %v", err)
				return
			}
			last = &frame

		case <-closed:
			d.log.Infof("Display WebSocket client disconnected")
			return

		case <-d.ctx.Done():
			return
		}
	}
}
