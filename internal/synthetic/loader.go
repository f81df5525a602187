package synthetic

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CheckFile is the on-disk definition file format
type CheckFile struct {
	Checks []Check `yaml:"checks"`
}

// CheckWithFile pairs a check with its source file path
type CheckWithFile struct {
	Check Check
	File  string
}

// ValidationError represents a validation error for a specific file
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}

// LoadFromDirectory discovers and loads all check definition files from
// a directory
func LoadFromDirectory(dirPath string) ([]CheckWithFile, []ValidationError) {
	var checks []CheckWithFile
	var errors []ValidationError

	files, err := discoverYAMLFiles(dirPath)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    dirPath,
			Message: fmt.Sprintf("failed to read directory: %v", err),
		})
		return nil, errors
	}

	for _, file := range files {
		parsed, err := parseCheckFile(file)
		if err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Message: fmt.Sprintf("failed to parse YAML: %v", err),
			})
			continue
		}
		for _, check := range parsed.Checks {
			checks = append(checks, CheckWithFile{Check: check, File: file})
		}
	}

	return checks, errors
}

// discoverYAMLFiles finds all *.yaml and *.yml files in a directory
func discoverYAMLFiles(dirPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// parseCheckFile parses a single YAML definition file
func parseCheckFile(filePath string) (*CheckFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var parsed CheckFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return &parsed, nil
}
