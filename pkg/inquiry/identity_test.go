package inquiry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIdentity(t *testing.T) {
	a := HashIdentity("salt", "203.0.113.7")

	assert.Len(t, a, 64)
	assert.NotContains(t, a, "203.0.113.7")
	assert.Equal(t, a, HashIdentity("salt", " 203.0.113.7 "))
	assert.NotEqual(t, a, HashIdentity("other", "203.0.113.7"))
	assert.NotEqual(t, a, HashIdentity("salt", "203.0.113.8"))
}
