package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/microfm/pkg/client"
	"github.com/dougsko/microfm/pkg/config"
	"github.com/dougsko/microfm/pkg/engine"
	"github.com/dougsko/microfm/pkg/logging"
)

// MicroFMDaemon runs the core engine and the web front end, which talks to
// the engine over its Unix socket.
type MicroFMDaemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logging.Component

	// Core components
	coreEngine   *engine.CoreEngine
	socketClient *client.SocketClient
	router       *gin.Engine
	webServer    *http.Server

	socketPath string
}

// NewMicroFMDaemon creates a new daemon instance
func NewMicroFMDaemon(cfg *config.Config) (*MicroFMDaemon, error) {
	parts, err := engine.OpenParts(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open devices: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.API.UnixSocket

	daemon := &MicroFMDaemon{
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		log:          logging.For("daemon"),
		socketPath:   socketPath,
		socketClient: client.NewSocketClient(socketPath),
		coreEngine:   engine.NewCoreEngine(cfg, socketPath, parts),
	}

	daemon.setupWebServer()
	return daemon, nil
}

// Start starts the daemon
func (d *MicroFMDaemon) Start() error {
	d.log.Infof("Starting microfmd daemon...")

	if err := d.coreEngine.Start(); err != nil {
		d.coreEngine.Stop()
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	if !d.socketClient.IsConnected() {
		d.coreEngine.Stop()
		return fmt.Errorf("failed to connect to core engine socket")
	}

	if d.config.Web.Enabled {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.log.Infof("Starting web server on %s", d.webServer.Addr)
			if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.log.Errorf("Web server error: %v", err)
			}
		}()
	}

	return nil
}

// Stop stops the daemon gracefully
func (d *MicroFMDaemon) Stop() error {
	d.log.Infof("Stopping daemon...")

	d.cancel()

	if d.config.Web.Enabled && d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			d.log.Warnf("Web server shutdown error: %v", err)
		}
	}

	if d.coreEngine != nil {
		if err := d.coreEngine.Stop(); err != nil {
			d.log.Warnf("Core engine shutdown error: %v", err)
		}
	}

	d.wg.Wait()

	d.log.Infof("Daemon stopped")
	return nil
}

// setupWebServer initializes the router and routes
func (d *MicroFMDaemon) setupWebServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/presets", d.handleGetPresets)
		api.GET("/mirror", d.handleGetMirror)
		api.POST("/buttons/:name", d.handlePressButton)
	}
	router.GET("/ws/display", d.handleDisplayWebSocket)

	d.router = router
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}
}
