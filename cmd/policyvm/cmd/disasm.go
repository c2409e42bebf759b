package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corepolicy/rvm/internal/compiler"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.pvc>",
	Short: "Disassemble a compiled Program file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}

func runDisasm(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	prog, err := compiler.Deserialize(data)
	if err != nil {
		return fmt.Errorf("deserializing %s: %w", args[0], err)
	}
	fmt.Println(prog.Disassemble())
	return nil
}
