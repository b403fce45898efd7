package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatterNames(t *testing.T) {
	var f Formatter = NewJSONFormatter()
	assert.Equal(t, "json", f.Name())

	f = NewCSVFormatter()
	assert.Equal(t, "csv", f.Name())
}
