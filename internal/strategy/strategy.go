// Package strategy evaluates ordered fallbacks: each strategy is tried in
// turn until one reports success.
package strategy

// Strategy is one named way of achieving something.
type Strategy[C any] struct {
	Name string
	Try  func(C) bool
}

// New is shorthand for a Strategy literal.
func New[C any](name string, try func(C) bool) Strategy[C] {
	return Strategy[C]{Name: name, Try: try}
}

// FirstOf runs strategies in order and returns the name of the first that
// succeeds. Strategies after it are not run.
func FirstOf[C any](c C, strategies ...Strategy[C]) (string, bool) {
	for _, s := range strategies {
		if s.Try != nil && s.Try(c) {
			return s.Name, true
		}
	}
	return "", false
}
