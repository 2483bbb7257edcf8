// Command agent runs the TRAPD endpoint telemetry agent: a long-running
// process that gathers host inventory on a cadence, queues it durably,
// and ships batches to a remote intake endpoint.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
