package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dougsko/microfm/pkg/client"
	"github.com/dougsko/microfm/pkg/controller"
)

var (
	socketPath = flag.String("socket", "/tmp/microfm.sock", "Unix socket path")
	command    = flag.String("cmd", "", "Command to send (e.g., 'STATUS', 'PRESS:seek-up')")
)

func main() {
	flag.Parse()

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	// If no command specified, show interactive help
	if *command == "" {
		if len(flag.Args()) > 0 {
			*command = strings.Join(flag.Args(), " ")
		} else {
			showHelp()
			return
		}
	}

	client := client.NewSocketClient(*socketPath)

	response, err := client.SendCommand(*command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", response.String())
	if !response.Success {
		os.Exit(2)
	}
}

func showHelp() {
	fmt.Println("microfmctl - FM radio daemon control tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options] <command>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -socket <path>    Unix socket path (default: /tmp/microfm.sock)")
	fmt.Println("  -cmd <command>    Command to send")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  STATUS                    Get tuner and controller state")
	fmt.Println("  PRESS:<button>            Press a front panel button")
	fmt.Println("  PRESETS                   List preset slots")
	fmt.Println("  MIRROR                    Dump tuner register mirrors")
	fmt.Println("  PING                      Test connection")
	fmt.Println()
	fmt.Printf("Buttons: %s\n", strings.Join(controller.ButtonNames(), ", "))
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s STATUS\n", os.Args[0])
	fmt.Printf("  %s PRESS:seek-up\n", os.Args[0])
	fmt.Printf("  echo 'PRESETS' | nc -U /tmp/microfm.sock\n")
}
