// Package interactive_commands lets an operator type a command at the
// process's stdin to control a running server or client, instead of
// relying solely on OS signals.
//
// Grounded on Infrastructure/cmd/commands.go's ListenForCommand.
package interactive_commands

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

const shutdownCmd = "exit"

// ListenForCommand reads stdin lines until cancelFunc is invoked via the
// shutdown command or stdin is closed. mode names the running process
// ("server" or "client") for the hint it prints.
func ListenForCommand(cancelFunc context.CancelFunc, mode string) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("Type '%s' to turn off the %s\n", shutdownCmd, mode)
	for scanner.Scan() {
		command := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(command, shutdownCmd) {
			log.Println("Shutting down...")
			cancelFunc()
			return
		}
		log.Printf("Unknown command: %s", command)
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading standard input: %v", err)
	}
}
