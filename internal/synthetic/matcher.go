package synthetic

import (
	"fmt"
	"reflect"
)

// Predicate is a programmatic matcher for a response fragment. Checks
// registered in code (rather than loaded from YAML) may embed predicates
// anywhere in their ExpectedResponse.
type Predicate func(actual interface{}) bool

// MatchResponse compares a decoded response body against an expectation.
// Expectations match structurally: maps require every expected key to
// match (extra actual keys are allowed), arrays require per-index
// matches, predicates are invoked on the actual fragment, and scalars
// compare by loose numeric-aware equality.
func MatchResponse(expected, actual interface{}) error {
	return match("$", expected, actual)
}

func match(path string, expected, actual interface{}) error {
	if expected == nil {
		return nil
	}

	switch exp := expected.(type) {
	case Predicate:
		if !exp(actual) {
			return fmt.Errorf("%s: predicate did not match value %v", path, actual)
		}
		return nil

	case func(interface{}) bool:
		if !exp(actual) {
			return fmt.Errorf("%s: predicate did not match value %v", path, actual)
		}
		return nil

	case map[string]interface{}:
		actualMap, ok := actual.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, actual)
		}
		for key, expValue := range exp {
			actValue, exists := actualMap[key]
			if !exists {
				return fmt.Errorf("%s.%s: missing key", path, key)
			}
			if err := match(path+"."+key, expValue, actValue); err != nil {
				return err
			}
		}
		return nil

	case []interface{}:
		actualSlice, ok := actual.([]interface{})
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, actual)
		}
		if len(actualSlice) < len(exp) {
			return fmt.Errorf("%s: expected at least %d elements, got %d", path, len(exp), len(actualSlice))
		}
		for i, expValue := range exp {
			if err := match(fmt.Sprintf("%s[%d]", path, i), expValue, actualSlice[i]); err != nil {
				return err
			}
		}
		return nil

	default:
		if !looseEqual(expected, actual) {
			return fmt.Errorf("%s: expected %v, got %v", path, expected, actual)
		}
		return nil
	}
}

// looseEqual compares scalars, treating all numeric types as float64
// since JSON decoding produces float64 while YAML expectations may
// carry int
func looseEqual(expected, actual interface{}) bool {
	if ef, ok := toFloat(expected); ok {
		if af, ok := toFloat(actual); ok {
			return ef == af
		}
		return false
	}
	return reflect.DeepEqual(expected, actual)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
