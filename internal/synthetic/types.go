package synthetic

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Check is a scripted HTTP probe definition. Registry entries are
// mutable at runtime; results refer to checks by name.
type Check struct {
	Name             string            `yaml:"name" json:"name"`
	Endpoint         string            `yaml:"endpoint" json:"endpoint"`
	Method           string            `yaml:"method" json:"method"`
	Body             string            `yaml:"body,omitempty" json:"body,omitempty"`
	ExpectedStatus   int               `yaml:"expectedStatus" json:"expectedStatus"`
	ExpectedResponse interface{}       `yaml:"expectedResponse,omitempty" json:"expectedResponse,omitempty"`
	Timeout          string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Result records one run of one check. Probe failures are captured
// here, never raised to the caller.
type Result struct {
	Name      string        `json:"name"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Stats aggregates a check's results over a trailing window
type Stats struct {
	Name        string        `json:"name"`
	Total       int           `json:"total"`
	Successes   int           `json:"successes"`
	AvgDuration time.Duration `json:"avgDuration"`
	MinDuration time.Duration `json:"minDuration"`
	MaxDuration time.Duration `json:"maxDuration"`
}

// ErrCheckNotFound is returned when a named check is not registered
var ErrCheckNotFound = fmt.Errorf("check not found")

// Registry is the mutable set of registered checks
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewRegistry creates an empty check registry
func NewRegistry() *Registry {
	return &Registry{
		checks: make(map[string]Check),
	}
}

// Add registers a check, replacing any existing check with the same name
func (r *Registry) Add(check Check) error {
	if check.Name == "" {
		return fmt.Errorf("check name is required")
	}
	if check.Endpoint == "" {
		return fmt.Errorf("check %s: endpoint is required", check.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[check.Name] = check
	return nil
}

// Update replaces an existing check's definition. Unlike Add it
// refuses to register a new name.
func (r *Registry) Update(check Check) error {
	if check.Name == "" {
		return fmt.Errorf("check name is required")
	}
	if check.Endpoint == "" {
		return fmt.Errorf("check %s: endpoint is required", check.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.checks[check.Name]; !exists {
		return fmt.Errorf("%w: %s", ErrCheckNotFound, check.Name)
	}
	r.checks[check.Name] = check
	return nil
}

// Remove deregisters a check by name
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.checks[name]; !exists {
		return fmt.Errorf("%w: %s", ErrCheckNotFound, name)
	}
	delete(r.checks, name)
	return nil
}

// Get returns a check by name
func (r *Registry) Get(name string) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	check, exists := r.checks[name]
	return check, exists
}

// List returns all registered checks sorted by name
func (r *Registry) List() []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checks := make([]Check, 0, len(r.checks))
	for _, check := range r.checks {
		checks = append(checks, check)
	}
	sort.Slice(checks, func(i, j int) bool {
		return checks[i].Name < checks[j].Name
	})

	return checks
}

// Size returns the number of registered checks
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checks)
}
