package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/corepolicy/rvm/internal/engine"
	"github.com/corepolicy/rvm/internal/value"
)

var (
	evalDataFiles   []string
	evalDataPatch   []string
	evalInputFile   string
	evalQueryPath   string
	evalUseCompiled bool
	evalSorted      bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <policy-file> <rule-or-query>",
	Short: "Evaluate a rule or ad hoc query against a policy source",
	Long: `eval loads a policy file and evaluates either a named rule (spec
§6.1's eval_rule) or, with --query, an ad hoc query body (eval_query).

Data documents load from --data files (JSON or YAML, merged in order),
then --set patches individual paths into the merged document without a
full unmarshal/remarshal round trip (SPEC_FULL §11's tidwall/sjson).
--query projects a sub-value of the result through a gjson path
(SPEC_FULL §11's tidwall/gjson) before printing.`,
	Args: cobra.ExactArgs(2),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringArrayVar(&evalDataFiles, "data", nil, "a JSON or YAML data file to merge in (repeatable)")
	evalCmd.Flags().StringArrayVar(&evalDataPatch, "set", nil, "patch a single data path, e.g. --set users.0.role=admin")
	evalCmd.Flags().StringVar(&evalInputFile, "input", "", "a JSON or YAML input document")
	evalCmd.Flags().StringVar(&evalQueryPath, "query", "", "project the result through a gjson path before printing")
	evalCmd.Flags().BoolVar(&evalUseCompiled, "compiled", false, "evaluate through the compiled register VM instead of the tree-walk oracle")
	evalCmd.Flags().BoolVar(&evalSorted, "sorted", false, "request deterministically sorted query solutions")
}

func runEval(_ *cobra.Command, args []string) error {
	policyFile, target := args[0], args[1]

	content, err := os.ReadFile(policyFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", policyFile, err)
	}

	e := engine.NewEngine()
	if err := e.AddPolicy(policyFile, string(content)); err != nil {
		return fmt.Errorf("loading %s: %w", policyFile, err)
	}

	for _, f := range evalDataFiles {
		if err := e.LoadDataFile(f); err != nil {
			return err
		}
	}

	if len(evalDataPatch) > 0 {
		if err := applyDataPatches(e, evalDataPatch); err != nil {
			return err
		}
	}

	if evalInputFile != "" {
		raw, err := os.ReadFile(evalInputFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", evalInputFile, err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("decoding %s: %w", evalInputFile, err)
		}
		e.SetInput(value.FromGo(decoded))
	}

	var result value.Value
	if evalQueryPath != "" {
		result, err = e.EvalQuery(target, evalSorted)
	} else if evalUseCompiled {
		var many []value.Value
		many, err = e.EvalMany(context.Background(), []string{target})
		if err == nil && len(many) == 1 {
			result = many[0]
		}
	} else {
		result, err = e.EvalRule(target)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(value.ToGo(result), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if evalQueryPath != "" {
		projected := gjson.GetBytes(out, evalQueryPath)
		fmt.Println(projected.String())
		return nil
	}

	fmt.Println(string(out))
	return nil
}

// applyDataPatches rewrites the engine's merged data document with each
// --set path=value pair applied in order via sjson, then reloads it
// through AddData.
func applyDataPatches(e *engine.Engine, patches []string) error {
	doc, err := json.Marshal(value.ToGo(e.Data()))
	if err != nil {
		return fmt.Errorf("encoding data document: %w", err)
	}

	for _, patch := range patches {
		path, raw, ok := splitSetFlag(patch)
		if !ok {
			return fmt.Errorf("invalid --set %q, want path=value", patch)
		}
		doc, err = sjson.SetRawBytes(doc, path, []byte(raw))
		if err != nil {
			return fmt.Errorf("applying --set %q: %w", patch, err)
		}
	}

	var decoded any
	if err := json.Unmarshal(doc, &decoded); err != nil {
		return fmt.Errorf("decoding patched data document: %w", err)
	}
	return e.AddData(value.FromGo(decoded))
}

// splitSetFlag splits "path=value" and quotes value as a JSON string
// unless it already looks like a JSON literal (number, bool, object,
// array, or quoted string).
func splitSetFlag(flag string) (path, rawValue string, ok bool) {
	for i := 0; i < len(flag); i++ {
		if flag[i] == '=' {
			return flag[:i], jsonLiteralOrQuoted(flag[i+1:]), true
		}
	}
	return "", "", false
}

func jsonLiteralOrQuoted(s string) string {
	if s == "true" || s == "false" || s == "null" {
		return s
	}
	if len(s) > 0 && (s[0] == '"' || s[0] == '{' || s[0] == '[') {
		return s
	}
	if json.Valid([]byte(s)) {
		var n json.Number
		if err := json.Unmarshal([]byte(s), &n); err == nil {
			return s
		}
	}
	quoted, _ := json.Marshal(s)
	return string(quoted)
}
