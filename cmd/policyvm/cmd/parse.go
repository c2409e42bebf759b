package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/parser"
	"github.com/corepolicy/rvm/internal/source"
)

var parseEval string

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a policy source and print its AST",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&parseEval, "eval", "e", "", "parse inline source instead of reading from file")
}

func runParse(_ *cobra.Command, args []string) error {
	text, name, err := readSource(parseEval, args)
	if err != nil {
		return err
	}

	p := parser.New(lexer.New(source.New(name, text)), name)
	mod := p.ParseModule()
	if diags := p.Diagnostics(); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.Format(nil, false))
		}
		return fmt.Errorf("parsing failed with %d error(s)", len(diags))
	}

	fmt.Println(mod.String())
	return nil
}
