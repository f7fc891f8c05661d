package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/parser/invoicetext"
	"github.com/rezonia/nf-reconciler/internal/parser/pdf"
	xmlparser "github.com/rezonia/nf-reconciler/internal/parser/xml"
)

var (
	outputFile string
	timeout    time.Duration
)

// ParseResult is the per-file outcome of the parse command
type ParseResult struct {
	File      string                   `json:"file"`
	Document  *model.ParsedDocument    `json:"document,omitempty"`
	Signature *xmlparser.SignatureInfo `json:"signature,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Parse fiscal documents without persisting them",
	Long: `Parse one or more fiscal document files and print the extracted
data. XML files go through dialect detection (NF-e, CT-e, NFS-e national,
ABRASF); PDFs are searched for embedded XML, then scraped as a DANFE
print or foreign vendor invoice.

Examples:
  nf-reconciler parse nota.xml
  nf-reconciler parse notas/*.xml danfe.pdf
  nf-reconciler parse notas/ -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	parseCmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Parsing timeout per file")
}

func runParse(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to parse")
	}
	printVerbose("Found %d files to parse\n", len(files))

	registry := xmlparser.NewRegistry()
	pdfExtractor := pdf.NewExtractor()
	textParser := invoicetext.NewParser()

	results := make([]*ParseResult, 0, len(files))
	for _, file := range files {
		printVerbose("Parsing: %s\n", file)
		result := parseFile(registry, pdfExtractor, textParser, file)
		results = append(results, result)
		if result.Error != "" {
			printVerbose("  Error: %s\n", result.Error)
		}
	}

	return outputResults(results)
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}

		if len(matches) == 0 {
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}
			if info.IsDir() {
				err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && isSupportedFile(path) {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
			} else {
				files = append(files, arg)
			}
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}
			if !info.IsDir() && isSupportedFile(match) {
				files = append(files, match)
			}
		}
	}

	return files, nil
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".pdf", ".txt":
		return true
	default:
		return false
	}
}

func parseFile(registry *xmlparser.Registry, pdfExtractor *pdf.Extractor, textParser *invoicetext.Parser, filePath string) *ParseResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := &ParseResult{File: filePath}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read file: %v", err)
		return result
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		result.Document, err = parsePDF(ctx, registry, pdfExtractor, textParser, data)
	case ".txt":
		result.Document, err = textParser.Extract(string(data))
	default:
		result.Document, err = registry.Parse(ctx, data)
		if err == nil {
			if sig := xmlparser.ExtractSignatureInfo(data); sig.Present {
				result.Signature = &sig
			}
		}
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func parsePDF(ctx context.Context, registry *xmlparser.Registry, pdfExtractor *pdf.Extractor, textParser *invoicetext.Parser, data []byte) (*model.ParsedDocument, error) {
	for _, payload := range pdfExtractor.XMLPayloads(data) {
		if doc, err := registry.Parse(ctx, payload); err == nil {
			return doc, nil
		}
	}

	text, err := pdfExtractor.Text(data)
	if err != nil {
		return nil, err
	}

	if invoicetext.IsInternationalInvoice(text) {
		return textParser.Extract(text)
	}

	fiscal := pdf.ExtractFiscalData(text)
	if fiscal == nil {
		return nil, fmt.Errorf("no fiscal data found in pdf text")
	}
	return &model.ParsedDocument{
		Type:      fiscal.Type,
		AccessKey: fiscal.AccessKey,
		Number:    fiscal.Number,
		IssueDate: fiscal.IssueDate,
		Issuer: model.Party{
			Name:  fiscal.IssuerName,
			TaxID: fiscal.IssuerCNPJ,
		},
		Totals: model.Totals{Gross: fiscal.Total},
	}, nil
}

func outputResults(results []*ParseResult) error {
	writer := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	switch outputFormat {
	case "table":
		tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tTYPE\tNUMBER\tISSUER\tTOTAL\tERROR")
		for _, r := range results {
			if r.Document == nil {
				fmt.Fprintf(tw, "%s\t\t\t\t\t%s\n", r.File, r.Error)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.File, r.Document.Type, r.Document.Number,
				r.Document.Issuer.Name, r.Document.Totals.Gross.StringFixed(2), r.Error)
		}
		return tw.Flush()
	default:
		enc := json.NewEncoder(writer)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
}
