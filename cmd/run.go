package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dojo-hq/dojo-cli/internal/execution"
	"github.com/dojo-hq/dojo-cli/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagLanguage  string
	flagStdinFile string
)

var extLanguages = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".java": "java",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a source file in the code sandbox",
	Long: `Execute a local source file against the sandboxed code executor and
print its output. The language is inferred from the file extension
unless --language is given.

Examples:
  dojo run solution.py
  dojo run main.cpp --stdin input.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCode(cmd, args[0])
	},
}

func runCode(cmd *cobra.Command, path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	language := flagLanguage
	if language == "" {
		language = extLanguages[strings.ToLower(filepath.Ext(path))]
	}
	if language == "" {
		return fmt.Errorf("cannot infer language from %q, pass --language", filepath.Base(path))
	}

	var stdin string
	if flagStdinFile != "" {
		data, err := os.ReadFile(flagStdinFile)
		if err != nil {
			return err
		}
		stdin = string(data)
	}

	client := execution.NewClient("", nil)

	stopSpinner := ui.RunSpinner("Running " + filepath.Base(path) + "...")
	defer stopSpinner()
	result, err := client.Execute(cmd.Context(), language, string(source), stdin)
	if err != nil {
		return err
	}
	stopSpinner()

	if result.Output != "" {
		fmt.Print(result.Output)
		if !strings.HasSuffix(result.Output, "\n") {
			fmt.Println()
		}
	}
	if result.ExitCode != 0 {
		ui.PrintWarning(fmt.Sprintf("exit code %d", result.ExitCode))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "Language (python|javascript|java|cpp)")
	runCmd.Flags().StringVar(&flagStdinFile, "stdin", "", "File piped to the program's standard input")
}
