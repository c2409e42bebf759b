package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/source"
)

var (
	lexEval     string
	lexShowSpan bool
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize a policy source and print the resulting tokens",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLex,
}

func init() {
	rootCmd.AddCommand(lexCmd)
	lexCmd.Flags().StringVarP(&lexEval, "eval", "e", "", "tokenize inline source instead of reading from file")
	lexCmd.Flags().BoolVar(&lexShowSpan, "show-span", false, "show each token's source span")
}

func runLex(_ *cobra.Command, args []string) error {
	text, name, err := readSource(lexEval, args)
	if err != nil {
		return err
	}

	l := lexer.New(source.New(name, text))
	for {
		tok := l.Next()
		if lexShowSpan {
			fmt.Printf("%-12s %q @%s\n", tok.Type, tok.Literal, tok.Span)
		} else {
			fmt.Printf("%-12s %q\n", tok.Type, tok.Literal)
		}
		if tok.Type == lexer.EOF {
			break
		}
	}

	if diags := l.Diagnostics(); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.Format(nil, false))
		}
		return fmt.Errorf("lexing failed with %d error(s)", len(diags))
	}
	return nil
}

// readSource resolves the CLI's usual "inline flag or file argument"
// input convention (the teacher's cmd/dwscript subcommands all share
// this shape); with neither it returns an error, and stdin is not read.
func readSource(inline string, args []string) (text, name string, err error) {
	if inline != "" {
		return inline, "<eval>", nil
	}
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		return string(data), args[0], nil
	}
	return "", "", fmt.Errorf("provide a file path or -e for inline source")
}
