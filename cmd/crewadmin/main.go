// Command crewadmin runs operator tasks against the crew planner database: schema migrations,
// the legacy join code backfill, invite link lookup and idempotency record cleanup.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(openPostgres).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "crewadmin:", err)
		os.Exit(1)
	}
}
