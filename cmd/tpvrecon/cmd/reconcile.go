package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tpv-reconciliation-service/cmd/tpvrecon/config"
	"tpv-reconciliation-service/internal/dues"
	"tpv-reconciliation-service/internal/models"
	"tpv-reconciliation-service/internal/reconciler"
	"tpv-reconciliation-service/internal/reporter"
	"tpv-reconciliation-service/internal/statement"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	statementFiles []string
	duesFile       string
	outputFormat   string
	outputFile     string
	excelOutput    string
	onlyProblems   bool

	// Dues source flags
	duesSheet      string
	customerColumn string
	amountColumn   string
	duesConvention string
	csvDelimiter   string

	// Statement format flags
	referenceMinDigits int
	referenceMaxDigits int
	lookaheadLines     int
	plainStatement     bool

	// Matching flags
	epsilon             float64
	looseTolerance      bool
	similarityThreshold float64
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile TPV settlement statements with delivery notes",
	Long: `Reconcile parses one or more settlement statements (text extracted from
the terminal's settlement PDF), aggregates the authorized collections per
customer reference and classifies every delivery-note row against them.

This command requires:
- One or more statement text files (--statement, repeatable)
- A delivery-note source: Excel workbook (.xlsx) or CSV (--dues)

Examples:
  # Basic reconciliation against a workbook
  tpvrecon reconcile --statement settlement.txt --dues albaranes.xlsx

  # Several statement uploads for the same day
  tpvrecon reconcile --statement morning.txt --statement evening.txt --dues dues.xlsx

  # JSON report to a file, plus the review workbook
  tpvrecon reconcile --statement s.txt --dues d.xlsx \
    --format json --output report.json --excel-output review.xlsx

  # Looser amount tolerance and custom reference width
  tpvrecon reconcile --statement s.txt --dues d.csv \
    --loose --reference-min-digits 4 --reference-max-digits 5

  # Only show customers that need review
  tpvrecon reconcile --statement s.txt --dues d.xlsx --only-problems`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringSliceVarP(&statementFiles, "statement", "s", []string{}, "path to a settlement statement text file; repeat for multiple uploads (required)")
	reconcileCmd.Flags().StringVarP(&duesFile, "dues", "d", "", "path to the delivery-note source, .xlsx or .csv (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().StringVar(&excelOutput, "excel-output", "", "also write the report as an Excel workbook at this path")
	reconcileCmd.Flags().BoolVar(&onlyProblems, "only-problems", false, "omit fully collected customers from the detail rows")

	// Dues source flags
	reconcileCmd.Flags().StringVar(&duesSheet, "dues-sheet", "", "worksheet name (default: first sheet)")
	reconcileCmd.Flags().StringVar(&customerColumn, "customer-column", "Venta a-Nº cliente", "header of the customer-reference column")
	reconcileCmd.Flags().StringVar(&amountColumn, "amount-column", "Importe envío IVA incluido", "header of the amount-due column")
	reconcileCmd.Flags().StringVar(&duesConvention, "dues-convention", "comma", "decimal convention of the dues amounts: dot, comma, auto")
	reconcileCmd.Flags().StringVar(&csvDelimiter, "csv-delimiter", ",", "field delimiter for CSV dues files")

	// Statement format flags
	reconcileCmd.Flags().IntVar(&referenceMinDigits, "reference-min-digits", 3, "minimum digits of a customer reference in the statement")
	reconcileCmd.Flags().IntVar(&referenceMaxDigits, "reference-max-digits", 6, "maximum digits of a customer reference in the statement")
	reconcileCmd.Flags().IntVar(&lookaheadLines, "lookahead", 8, "lines scanned after an amount for its reference and outcome")
	reconcileCmd.Flags().BoolVar(&plainStatement, "plain-statement", false, "treat statements as plain amount/reference text without headers or outcome vocabulary")

	// Matching flags
	reconcileCmd.Flags().Float64VarP(&epsilon, "epsilon", "e", 0, "amount comparison tolerance (default 0.01)")
	reconcileCmd.Flags().BoolVar(&looseTolerance, "loose", false, "use the loose tolerance (0.02) instead of the strict default")
	reconcileCmd.Flags().Float64Var(&similarityThreshold, "similarity-threshold", 0.6, "minimum positional similarity to call a reference miskeyed (0.0-1.0)")

	// Mark required flags
	reconcileCmd.MarkFlagRequired("statement")
	reconcileCmd.MarkFlagRequired("dues")

	// Bind flags to viper
	viper.BindPFlag("statement", reconcileCmd.Flags().Lookup("statement"))
	viper.BindPFlag("dues", reconcileCmd.Flags().Lookup("dues"))
	viper.BindPFlag("format", reconcileCmd.Flags().Lookup("format"))
	viper.BindPFlag("output", reconcileCmd.Flags().Lookup("output"))
	viper.BindPFlag("excel-output", reconcileCmd.Flags().Lookup("excel-output"))
	viper.BindPFlag("only-problems", reconcileCmd.Flags().Lookup("only-problems"))
	viper.BindPFlag("dues-sheet", reconcileCmd.Flags().Lookup("dues-sheet"))
	viper.BindPFlag("customer-column", reconcileCmd.Flags().Lookup("customer-column"))
	viper.BindPFlag("amount-column", reconcileCmd.Flags().Lookup("amount-column"))
	viper.BindPFlag("dues-convention", reconcileCmd.Flags().Lookup("dues-convention"))
	viper.BindPFlag("csv-delimiter", reconcileCmd.Flags().Lookup("csv-delimiter"))
	viper.BindPFlag("reference-min-digits", reconcileCmd.Flags().Lookup("reference-min-digits"))
	viper.BindPFlag("reference-max-digits", reconcileCmd.Flags().Lookup("reference-max-digits"))
	viper.BindPFlag("lookahead", reconcileCmd.Flags().Lookup("lookahead"))
	viper.BindPFlag("plain-statement", reconcileCmd.Flags().Lookup("plain-statement"))
	viper.BindPFlag("epsilon", reconcileCmd.Flags().Lookup("epsilon"))
	viper.BindPFlag("loose", reconcileCmd.Flags().Lookup("loose"))
	viper.BindPFlag("similarity-threshold", reconcileCmd.Flags().Lookup("similarity-threshold"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	statementFiles = viper.GetStringSlice("statement")
	duesFile = viper.GetString("dues")
	outputFormat = viper.GetString("format")
	outputFile = viper.GetString("output")
	excelOutput = viper.GetString("excel-output")
	onlyProblems = viper.GetBool("only-problems")
	duesSheet = viper.GetString("dues-sheet")
	customerColumn = viper.GetString("customer-column")
	amountColumn = viper.GetString("amount-column")
	duesConvention = viper.GetString("dues-convention")
	csvDelimiter = viper.GetString("csv-delimiter")
	referenceMinDigits = viper.GetInt("reference-min-digits")
	referenceMaxDigits = viper.GetInt("reference-max-digits")
	lookaheadLines = viper.GetInt("lookahead")
	plainStatement = viper.GetBool("plain-statement")
	epsilon = viper.GetFloat64("epsilon")
	looseTolerance = viper.GetBool("loose")
	similarityThreshold = viper.GetFloat64("similarity-threshold")

	// Validate required flags
	if len(statementFiles) == 0 {
		return fmt.Errorf("at least one statement file is required")
	}
	if duesFile == "" {
		return fmt.Errorf("dues file is required")
	}

	// Validate file existence
	for i, stmtFile := range statementFiles {
		if err := validateFileExists(stmtFile, fmt.Sprintf("statement file %d", i+1)); err != nil {
			return err
		}
	}
	if err := validateFileExists(duesFile, "dues file"); err != nil {
		return err
	}

	// Validate output format
	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	// Validate statement format parameters
	if referenceMinDigits < 1 {
		return fmt.Errorf("reference-min-digits must be at least 1")
	}
	if referenceMaxDigits < referenceMinDigits {
		return fmt.Errorf("reference-max-digits cannot be smaller than reference-min-digits")
	}
	if lookaheadLines < 1 {
		return fmt.Errorf("lookahead must be at least 1")
	}

	// Validate matching parameters
	if epsilon < 0 {
		return fmt.Errorf("epsilon cannot be negative")
	}
	if epsilon > 0 && looseTolerance {
		return fmt.Errorf("epsilon and loose are mutually exclusive")
	}
	if similarityThreshold < 0.0 || similarityThreshold > 1.0 {
		return fmt.Errorf("similarity-threshold must be between 0.0 and 1.0")
	}

	// Validate dues parameters
	if len([]rune(csvDelimiter)) != 1 {
		return fmt.Errorf("csv-delimiter must be a single character")
	}
	if _, err := config.ParseConvention(duesConvention); err != nil {
		return err
	}

	// Validate output directories exist if specified
	for _, path := range []string{outputFile, excelOutput} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Statements: %s\n", strings.Join(statementFiles, ", "))
		fmt.Fprintf(os.Stderr, "Dues file: %s\n", duesFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	// Create configurations
	format, err := config.CreateStatementFormat(config.StatementOptions{
		ReferenceMinDigits: referenceMinDigits,
		ReferenceMaxDigits: referenceMaxDigits,
		LookaheadLines:     lookaheadLines,
		Plain:              plainStatement,
	})
	if err != nil {
		return fmt.Errorf("failed to create statement format: %w", err)
	}

	matchingConfig, err := config.CreateMatchingConfig(epsilon, looseTolerance, similarityThreshold)
	if err != nil {
		return fmt.Errorf("failed to create matching config: %w", err)
	}

	loaderConfig, err := config.CreateLoaderConfig(config.LoaderOptions{
		SheetName:      duesSheet,
		CustomerColumn: customerColumn,
		AmountColumn:   amountColumn,
		Convention:     duesConvention,
		Delimiter:      []rune(csvDelimiter)[0],
	})
	if err != nil {
		return fmt.Errorf("failed to create dues loader config: %w", err)
	}

	// Create reconciliation service
	service, err := reconciler.NewService(&reconciler.Config{
		Format:   format,
		Matching: matchingConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to create reconciliation service: %w", err)
	}

	// Load the dues
	loader, err := dues.NewLoader(loaderConfig)
	if err != nil {
		return fmt.Errorf("failed to create dues loader: %w", err)
	}

	var dueRecords []*models.DueRecord
	var rowErrs []*dues.RowError
	if strings.EqualFold(filepath.Ext(duesFile), ".csv") {
		dueRecords, rowErrs, err = loader.LoadCSV(duesFile)
	} else {
		dueRecords, rowErrs, err = loader.LoadWorkbook(duesFile)
	}
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") && len(rowErrs) > 0 {
		fmt.Fprintf(os.Stderr, "%d dues row(s) failed normalization:\n", len(rowErrs))
		for _, rowErr := range rowErrs {
			fmt.Fprintf(os.Stderr, "  row %s: %v\n", rowErr.SourceLineID, rowErr.Err)
		}
	}

	// Parse every statement into the session ledger
	ledger := reconciler.NewLedger()
	for _, stmtFile := range statementFiles {
		doc, err := statement.LoadDocument(stmtFile)
		if err != nil {
			return err
		}
		records, stats := service.ParseStatement(doc)
		ledger.Append(records, stats)

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Parsed %s: %d collection(s) from %d line(s)\n",
				stmtFile, stats.RecordsEmitted, stats.LinesScanned)
		}
	}

	// Reconcile
	report, err := service.Run(ledger, dueRecords, len(rowErrs))
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	// Render the report
	reportConfig := config.CreateReportConfig(outputFormat, outputFile, onlyProblems)
	rep, err := reporter.New(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}
	if err := rep.Write(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	// Optional review workbook
	if excelOutput != "" {
		if err := reporter.WriteWorkbook(excelOutput, report); err != nil {
			return fmt.Errorf("failed to write review workbook: %w", err)
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Review workbook written to %s\n", excelOutput)
		}
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Processed %d collection(s) against %d customer(s).\n",
			report.Stats.Parse.RecordsEmitted, report.Stats.Matching.TotalCustomers)
		fmt.Fprintf(os.Stderr, "Total due %s, total collected %s, %d orphan collection(s).\n",
			report.TotalDue().StringFixed(2), report.TotalCollected().StringFixed(2),
			report.Stats.Matching.OrphanCount)
	}

	return nil
}
