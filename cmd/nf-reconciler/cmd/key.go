package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/nf-reconciler/internal/cnpj"
	"github.com/rezonia/nf-reconciler/internal/fiscalkey"
)

// KeyResult is the per-key outcome of the key command
type KeyResult struct {
	Key          string `json:"key"`
	Valid        bool   `json:"valid"`
	State        string `json:"state,omitempty"`
	CNPJ         string `json:"cnpj,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	Number       string `json:"number,omitempty"`
	Description  string `json:"description,omitempty"`
	Error        string `json:"error,omitempty"`
}

var keyCmd = &cobra.Command{
	Use:   "key [keys...]",
	Short: "Validate and decode fiscal access keys",
	Long: `Validate the check digit of 44 digit access keys and decode their
structural fields. Punctuation and spacing in the input are ignored.

Examples:
  nf-reconciler key 35260111222333000181550010000123451123456785
  nf-reconciler key "3526 0111 2223 3300 0181 5500 1000 0123 4511 2345 6785" -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKey,
}

func init() {
	rootCmd.AddCommand(keyCmd)
}

func runKey(cmd *cobra.Command, args []string) error {
	results := make([]*KeyResult, 0, len(args))
	for _, arg := range args {
		results = append(results, describeKey(arg))
	}

	switch outputFormat {
	case "table":
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tVALID\tTYPE\tUF\tCNPJ\tNUMBER")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\t%s\n",
				r.Key, r.Valid, r.DocumentType, r.State, r.CNPJ, r.Number)
		}
		return tw.Flush()
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
}

func describeKey(raw string) *KeyResult {
	clean := fiscalkey.Clean(raw)
	result := &KeyResult{Key: clean}

	key := fiscalkey.Parse(raw)
	if key == nil {
		result.Error = fmt.Sprintf("expected 44 digits, got %d", len(clean))
		return result
	}

	result.Valid = fiscalkey.Validate(raw)
	result.State = fiscalkey.UFName(key.UF)
	result.CNPJ = cnpj.Format(key.CNPJ)
	result.DocumentType = string(key.DocumentType())
	result.Number = key.Number
	result.Description = key.Describe()
	return result
}
