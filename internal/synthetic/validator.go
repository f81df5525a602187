package synthetic

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Validator validates check definition files against the JSON schema
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new validator with the given schema file
func NewValidator(schemaPath string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDirectory loads and validates all check files in a directory
func (v *Validator) ValidateDirectory(dirPath string) []ValidationError {
	checks, loadErrors := LoadFromDirectory(dirPath)

	var allErrors []ValidationError
	allErrors = append(allErrors, loadErrors...)

	if len(checks) == 0 {
		return allErrors
	}

	for _, cwf := range checks {
		allErrors = append(allErrors, v.validateSchema(cwf.File, cwf.Check)...)
	}

	allErrors = append(allErrors, v.validateExtraRules(checks)...)

	return allErrors
}

// validateSchema validates a single check against the JSON schema
func (v *Validator) validateSchema(file string, check Check) []ValidationError {
	var errors []ValidationError

	// Convert the check to generic JSON-compatible data for schema validation
	yamlBytes, err := yaml.Marshal(check)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to marshal check: %v", err),
		})
		return errors
	}

	var jsonData interface{}
	if err := yaml.Unmarshal(yamlBytes, &jsonData); err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to convert to JSON: %v", err),
		})
		return errors
	}

	if err := v.schema.Validate(jsonData); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			errors = append(errors, extractSchemaErrors(file, check.Name, validationErr)...)
		} else {
			errors = append(errors, ValidationError{
				File:    file,
				Message: err.Error(),
			})
		}
	}

	return errors
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors
func extractSchemaErrors(file, checkName string, err *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}
	if checkName != "" {
		path = checkName + ": " + path
	}

	errors = append(errors, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errors = append(errors, extractSchemaErrors(file, checkName, cause)...)
	}

	return errors
}

// validateExtraRules applies validation beyond the JSON schema
func (v *Validator) validateExtraRules(checks []CheckWithFile) []ValidationError {
	var errors []ValidationError

	nameSeen := make(map[string]string)
	for _, cwf := range checks {
		name := cwf.Check.Name
		if prevFile, exists := nameSeen[name]; exists {
			errors = append(errors, ValidationError{
				File:    cwf.File,
				Path:    "name",
				Message: fmt.Sprintf("duplicate check name %q (also in %s)", name, filepath.Base(prevFile)),
			})
		} else {
			nameSeen[name] = cwf.File
		}
	}

	return errors
}
