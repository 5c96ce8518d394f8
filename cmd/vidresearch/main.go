// Command vidresearch runs video research sessions against a WebSocket
// research server, or serves one for development.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
