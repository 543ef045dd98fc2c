package job

import "fmt"

// Priority orders the pending queue. Higher weights dequeue first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// DefaultWeights returns the default priority weight table.
func DefaultWeights() map[Priority]int {
	return map[Priority]int{
		PriorityHigh:   3,
		PriorityNormal: 2,
		PriorityLow:    1,
	}
}

// ParsePriority converts a string into a Priority. The empty string
// maps to PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return Priority(s), nil
	case "":
		return PriorityNormal, nil
	default:
		return "", fmt.Errorf("job: unknown priority %q", s)
	}
}

// ParseClass converts a string into a Class. The empty string maps to
// ClassRegular.
func ParseClass(s string) (Class, error) {
	switch Class(s) {
	case ClassRegular, ClassStress:
		return Class(s), nil
	case "":
		return ClassRegular, nil
	default:
		return "", fmt.Errorf("job: unknown class %q", s)
	}
}
