// Command gizlive runs real-time voice and video conversations with a live
// model service from the terminal.
//
// Usage:
//
//	gizlive [flags] <command> [args]
//
// Commands:
//
//	live       - start a conversation with the microphone, speaker and camera
//	devices    - list audio devices
//	config     - manage contexts
//	recording  - inspect session recordings
//
// Configuration is stored in ~/.giztoy/gizlive/config.yaml.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/gizlive/cmd/gizlive/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
