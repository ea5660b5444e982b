// Command dmcache simulates a direct-mapped cache between a random
// self-checking front-end agent and a pipelined block memory.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
