package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corepolicy/rvm/internal/compiler"
	"github.com/corepolicy/rvm/internal/engine"
)

var (
	compileOutput      string
	compileDisassemble bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile a policy source to a serialized Program",
	Long: `Compile a policy module to a Program (spec §7's bytecode compiler) and
write it to a .pvc file via gob (SPEC_FULL §11: encoding/gob, the only
serialization format the Program/value types implement round-trip
support for).`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "output file (default: <input>.pvc)")
	compileCmd.Flags().BoolVar(&compileDisassemble, "disassemble", false, "print the disassembled Program after compiling")
}

func runCompile(_ *cobra.Command, args []string) error {
	filename := args[0]
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}

	e := engine.NewEngine()
	if err := e.AddPolicy(filename, string(content)); err != nil {
		return fmt.Errorf("compiling %s: %w", filename, err)
	}

	prog, err := e.CompileProgram()
	if err != nil {
		return fmt.Errorf("compiling %s: %w", filename, err)
	}

	if compileDisassemble {
		fmt.Println(prog.Disassemble())
	}

	data, err := compiler.Serialize(prog)
	if err != nil {
		return fmt.Errorf("serializing program: %w", err)
	}

	out := compileOutput
	if out == "" {
		ext := filepath.Ext(filename)
		if ext != "" {
			out = strings.TrimSuffix(filename, ext) + ".pvc"
		} else {
			out = filename + ".pvc"
		}
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Printf("Compiled %s -> %s\n", filename, out)
	return nil
}
