package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nawedy/vigil/internal/synthetic"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate synthetic check definition files",
	Long:  "Validate the check YAML files in a directory against the check schema",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("dir", "", "Directory containing check YAML files (required)")
	validateCmd.Flags().String("schema", "", "Path to the check JSON Schema (default: auto-discover)")
	validateCmd.MarkFlagRequired("dir")
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	schemaPath, _ := cmd.Flags().GetString("schema")

	if schemaPath == "" {
		schemaPath = findSchemaFile()
		if schemaPath == "" {
			return fmt.Errorf("could not find schemas/check_v1.json, pass --schema")
		}
	}

	validator, err := synthetic.NewValidator(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to initialize validator: %w", err)
	}

	errors := validator.ValidateDirectory(dir)
	if len(errors) == 0 {
		fmt.Println("✓ All check files are valid")
		return nil
	}

	// Group errors by file for readable output
	errorsByFile := make(map[string][]synthetic.ValidationError)
	for _, ve := range errors {
		errorsByFile[ve.File] = append(errorsByFile[ve.File], ve)
	}

	var files []string
	for file := range errorsByFile {
		files = append(files, file)
	}
	sort.Strings(files)

	fmt.Fprintf(os.Stderr, "✗ Validation failed with %d error(s):\n\n", len(errors))
	for _, file := range files {
		for _, ve := range errorsByFile[file] {
			if ve.Path != "" {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", filepath.Base(ve.File), ve.Path, ve.Message)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(ve.File), ve.Message)
			}
		}
	}

	return fmt.Errorf("%d validation error(s)", len(errors))
}

// findSchemaFile looks for the schema file in common locations
func findSchemaFile() string {
	candidates := []string{
		"schemas/check_v1.json",
		"../schemas/check_v1.json",
		"../../schemas/check_v1.json",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
