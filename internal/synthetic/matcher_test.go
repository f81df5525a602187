package synthetic

import (
	"testing"
)

func TestMatchResponse(t *testing.T) {
	tests := []struct {
		name     string
		expected interface{}
		actual   interface{}
		wantErr  bool
	}{
		{
			name:     "nil expectation matches anything",
			expected: nil,
			actual:   map[string]interface{}{"status": "ok"},
		},
		{
			name:     "scalar equality",
			expected: "ok",
			actual:   "ok",
		},
		{
			name:     "scalar mismatch",
			expected: "ok",
			actual:   "degraded",
			wantErr:  true,
		},
		{
			name:     "int expectation matches json float",
			expected: 200,
			actual:   float64(200),
		},
		{
			name: "nested object subset match",
			expected: map[string]interface{}{
				"status": "ok",
				"data":   map[string]interface{}{"count": 3},
			},
			actual: map[string]interface{}{
				"status": "ok",
				"extra":  "ignored",
				"data":   map[string]interface{}{"count": float64(3), "other": true},
			},
		},
		{
			name: "missing key",
			expected: map[string]interface{}{
				"status": "ok",
			},
			actual:  map[string]interface{}{"state": "ok"},
			wantErr: true,
		},
		{
			name:     "array prefix match",
			expected: []interface{}{"a", "b"},
			actual:   []interface{}{"a", "b", "c"},
		},
		{
			name:     "array too short",
			expected: []interface{}{"a", "b", "c"},
			actual:   []interface{}{"a"},
			wantErr:  true,
		},
		{
			name:     "array element mismatch",
			expected: []interface{}{"a", "b"},
			actual:   []interface{}{"a", "x"},
			wantErr:  true,
		},
		{
			name: "type mismatch on object",
			expected: map[string]interface{}{
				"status": "ok",
			},
			actual:  "just a string",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MatchResponse(tt.expected, tt.actual)
			if tt.wantErr && err == nil {
				t.Error("expected match error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected match error: %v", err)
			}
		})
	}
}

func TestMatchResponse_Predicate(t *testing.T) {
	atLeastTen := Predicate(func(actual interface{}) bool {
		n, ok := actual.(float64)
		return ok && n >= 10
	})

	expected := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"count": atLeastTen},
		},
	}

	pass := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"count": float64(42)},
		},
	}
	if err := MatchResponse(expected, pass); err != nil {
		t.Errorf("expected predicate to match: %v", err)
	}

	fail := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"count": float64(3)},
		},
	}
	if err := MatchResponse(expected, fail); err == nil {
		t.Error("expected predicate mismatch error")
	}
}
