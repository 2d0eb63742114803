package redisbind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsApply(t *testing.T) {
	c := NewDefaultConfig()
	assert.False(t, c.ReadOnly)
	assert.False(t, c.RollbackOnly)
	assert.Nil(t, c.VendorOption)

	OptionReadOnly().Apply(&c)
	OptionRollbackOnly().Apply(&c)
	OptionVendor([]string{"balance"}).Apply(&c)

	assert.True(t, c.ReadOnly)
	assert.True(t, c.RollbackOnly)
	assert.Equal(t, []string{"balance"}, c.VendorOption)
}
