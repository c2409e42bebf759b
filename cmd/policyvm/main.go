// Command policyvm lexes, parses, compiles, disassembles and evaluates
// policy sources against the register-based policy VM (spec §6.1/§10.1:
// the host-facing CLI sibling of internal/engine).
package main

import (
	"fmt"
	"os"

	"github.com/corepolicy/rvm/cmd/policyvm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
