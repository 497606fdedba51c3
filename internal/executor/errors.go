package executor

import (
	"fmt"
	"strings"
)

// Category classifies a query failure for user display. Categorization is
// advisory: it changes the message, never the control flow.
type Category string

const (
	CategoryTimeout        Category = "timeout"
	CategoryObjectNotFound Category = "object_not_found"
	CategoryPermission     Category = "permission"
	CategorySyntax         Category = "syntax"
	CategoryGeneric        Category = "generic"
)

// QueryError wraps a driver failure with a user-facing category.
type QueryError struct {
	Category Category
	Err      error
}

func (e *QueryError) Error() string {
	switch e.Category {
	case CategoryTimeout:
		return "query timeout exceeded, consider optimizing the query or raising the configured timeout"
	case CategoryObjectNotFound:
		return fmt.Sprintf("table or view not found: %v", e.Err)
	case CategoryPermission:
		return fmt.Sprintf("insufficient permissions: %v", e.Err)
	case CategorySyntax:
		return fmt.Sprintf("syntax error: %v", e.Err)
	default:
		return fmt.Sprintf("SQL execution error: %v", e.Err)
	}
}

func (e *QueryError) Unwrap() error { return e.Err }

// categorize maps a driver error onto a category by case-sensitive
// substring matching on the underlying message, mirroring the error strings
// SQL Server actually emits.
func categorize(err error) *QueryError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "timeout"):
		return &QueryError{Category: CategoryTimeout, Err: err}
	case strings.Contains(msg, "Invalid object name"):
		return &QueryError{Category: CategoryObjectNotFound, Err: err}
	case strings.Contains(msg, "permission"):
		return &QueryError{Category: CategoryPermission, Err: err}
	case strings.Contains(msg, "syntax"):
		return &QueryError{Category: CategorySyntax, Err: err}
	default:
		return &QueryError{Category: CategoryGeneric, Err: err}
	}
}
