package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "policyvm",
	Short: "A Datalog-flavored policy engine and register VM",
	Long: `policyvm lexes, parses, analyzes, compiles and evaluates declarative
policy modules (spec §2's [MODULE]/rule grammar) against a register-based
virtual machine with suspendable HostAwait execution (spec §8).

Subcommands mirror the pipeline stages:
  lex      tokenize a policy source
  parse    parse a policy source and print its AST
  compile  lower a policy module to a Program and optionally disassemble it
  disasm   disassemble an already-compiled Program
  eval     evaluate a rule or ad hoc query against loaded policy/data/input`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}
