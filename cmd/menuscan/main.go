// Command menuscan runs the offline-first menu capture backend: the local
// store, the pending-upload queue and the background sync that replays it.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
