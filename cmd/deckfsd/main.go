// Command deckfsd runs the filesystem-driven key-grid daemon.
package main

import "github.com/deckfsd/deckfsd/cmd/deckfsd/cmd"

func main() {
	cmd.Execute()
}
