package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapturingPrefixesBySeverity(t *testing.T) {
	c := &Capturing{}

	c.Debugf("d=%d", 1)
	c.Infof("i=%d", 2)
	c.Warnf("w=%d", 3)
	c.Errorf("e=%d", 4)

	assert.Equal(t, []string{
		"DEBUG d=1",
		"INFO i=2",
		"WARN w=3",
		"ERROR e=4",
	}, c.Lines)
}
