/*
main.go - Command-line client for the subsidy allocation engine

PURPOSE:
  Runs allocations and reports directly against the SQLite database,
  without going through the HTTP server. Useful for back-office batch
  work and for inspecting a database file.

COMMANDS:
  allocate   Submit one leave and print the derived subsidy periods
  advance    Move a subsidy period through its workflow
  review     Move a leave interval through document review
  breaches   Subjects whose accepted reimbursable days exceed a limit
  overdue    Reimbursable periods past their filing deadline

GLOBAL FLAGS:
  --config   YAML config file (same format as the server)
  --db       SQLite database path, overrides database.path

EXAMPLES:
  subsidyctl allocate --subject emp-1 --start 2024-03-01 --end 2024-03-10 --category common_illness
  subsidyctl breaches --kind continuous --limit 365
  subsidyctl overdue --as-of 2024-06-01
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
