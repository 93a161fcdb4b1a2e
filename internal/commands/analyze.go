package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newAnalyzeCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Detect the format of a statement export and suggest a column mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(dir, args[0])
		},
	}
	cmd.Flags().StringVarP(&dir, "workspace", "w", ".", "workspace directory")
	return cmd
}

func runAnalyze(dir, file string) error {
	ws, err := openWorkspace(dir)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	if int64(len(raw)) > ws.cfg.Import.MaxFileBytes {
		return fmt.Errorf("%s exceeds the %d byte upload limit", file, ws.cfg.Import.MaxFileBytes)
	}

	pipeline := newPipeline(ws)
	analysis, err := pipeline.Analyze(raw, filepath.Base(file))
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Println(filepath.Base(file))
	fmt.Printf("  encoding:   %s\n", analysis.Encoding)
	fmt.Printf("  delimiter:  %q\n", analysis.Delimiter)
	fmt.Printf("  columns:    %s\n", strings.Join(analysis.Headers, ", "))
	fmt.Printf("  data rows:  %d\n", analysis.RowCount)
	if analysis.DateConvention != "" {
		fmt.Printf("  dates:      %s\n", analysis.DateConvention)
	}

	bold.Println("Suggested mapping (override with import flags):")
	fmt.Printf("  --date %q --amount %q --recipient %q",
		analysis.Suggested.Date, analysis.Suggested.Amount, analysis.Suggested.Recipient)
	if analysis.Suggested.Purpose != "" {
		fmt.Printf(" --purpose %q", analysis.Suggested.Purpose)
	}
	fmt.Println()
	return nil
}
