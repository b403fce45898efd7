package format

import (
	"uxtrace/src/internal/core"
)

// Formatter transforms an interaction record into its wire form.
type Formatter interface {
	// Format returns the serialized record without a trailing newline.
	Format(rec core.Record) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}
