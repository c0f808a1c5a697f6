package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dougsko/microfm/pkg/client"
)

var (
	socketPath = flag.String("socket", "/tmp/microfm.sock", "Unix socket path")
	refresh    = flag.Duration("refresh", 100*time.Millisecond, "Status refresh interval")
)

func main() {
	flag.Parse()

	c := client.NewSocketClient(*socketPath)
	c.SetTimeout(time.Second)
	if !c.IsConnected() {
		fmt.Fprintf(os.Stderr, "Error: cannot reach microfmd on %s\n", *socketPath)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(c, *refresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
