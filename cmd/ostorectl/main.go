// Command ostorectl administers an ostore PostgreSQL object-storage
// engine: schema bootstrap and reset, configuration inspection, object
// counts, and trash/vacuum backlog inspection.
package main

import "ostore/cmd/ostorectl/cmd"

func main() {
	cmd.Execute()
}
