// Command assistant runs the morning-briefing assistant as an HTTP server
// or as a one-shot terminal session.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
