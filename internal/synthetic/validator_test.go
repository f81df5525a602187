package synthetic

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustNewValidator(t *testing.T) *Validator {
	t.Helper()

	validator, err := NewValidator("../../schemas/check_v1.json")
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}
	return validator
}

func writeCheckFile(t *testing.T, dir, name, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write check file: %v", err)
	}
}

func TestValidator_ValidDirectory(t *testing.T) {
	dir := t.TempDir()
	writeCheckFile(t, dir, "checks.yaml", `
checks:
  - name: homepage
    endpoint: https://example.com/
    method: GET
    expectedStatus: 200
  - name: login
    endpoint: https://example.com/login
    method: POST
    body: '{"user": "probe"}'
    expectedStatus: 200
    timeout: 30s
    headers:
      Authorization: "Bearer {{API_TOKEN}}"
    expectedResponse:
      status: ok
`)

	validator := mustNewValidator(t)
	errors := validator.ValidateDirectory(dir)
	if len(errors) != 0 {
		t.Errorf("expected no errors, got %d:", len(errors))
		for _, err := range errors {
			t.Logf("  %v", err)
		}
	}
}

func TestValidator_InvalidDirectory(t *testing.T) {
	dir := t.TempDir()
	writeCheckFile(t, dir, "bad-method.yaml", `
checks:
  - name: bad-method
    endpoint: https://example.com/
    method: FETCH
    expectedStatus: 200
`)
	writeCheckFile(t, dir, "bad-status.yaml", `
checks:
  - name: bad-status
    endpoint: https://example.com/
    method: GET
    expectedStatus: 9000
`)

	validator := mustNewValidator(t)
	errors := validator.ValidateDirectory(dir)
	if len(errors) == 0 {
		t.Fatal("expected validation errors, got none")
	}

	byCheck := make(map[string]bool)
	for _, err := range errors {
		if strings.Contains(err.Path, "bad-method") {
			byCheck["bad-method"] = true
		}
		if strings.Contains(err.Path, "bad-status") {
			byCheck["bad-status"] = true
		}
	}

	if !byCheck["bad-method"] {
		t.Error("expected an error for the unknown method")
	}
	if !byCheck["bad-status"] {
		t.Error("expected an error for the out-of-range status")
	}
}

func TestValidator_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeCheckFile(t, dir, "a.yaml", `
checks:
  - name: homepage
    endpoint: https://example.com/
    method: GET
    expectedStatus: 200
`)
	writeCheckFile(t, dir, "b.yaml", `
checks:
  - name: homepage
    endpoint: https://example.org/
    method: GET
    expectedStatus: 200
`)

	validator := mustNewValidator(t)
	errors := validator.ValidateDirectory(dir)

	hasDuplicate := false
	for _, err := range errors {
		if strings.Contains(err.Message, "duplicate") {
			hasDuplicate = true
		}
	}
	if !hasDuplicate {
		t.Errorf("expected duplicate-name error, got: %v", errors)
	}
}

func TestValidator_UnparseableFile(t *testing.T) {
	dir := t.TempDir()
	writeCheckFile(t, dir, "broken.yaml", "checks: [name: {{{")

	validator := mustNewValidator(t)
	errors := validator.ValidateDirectory(dir)
	if len(errors) == 0 {
		t.Fatal("expected a parse error, got none")
	}
	if !strings.Contains(errors[0].Message, "parse") {
		t.Errorf("expected a parse failure message, got %q", errors[0].Message)
	}
}
