package debughost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostSamplerMethods(t *testing.T) {
	h := &Host{
		mailbox:            make(chan mailboxItem, 4),
		scriptsByID:        map[string]*Script{"s1": {}, "s2": {}},
		breakableLocsByID:  map[string]*BreakableLocation{"bl1": {}},
		enabledBreakpoints: map[string]*BreakableLocation{"bl1": {}, "bl2": {}},
	}

	assert.Equal(t, 0, h.MailboxLen())
	assert.Equal(t, 2, h.ScriptCount())
	assert.Equal(t, 1, h.BreakableLocationCount())
	assert.Equal(t, 2, h.BreakpointCount())

	h.mailbox <- postponeInitializeItem{}
	assert.Equal(t, 1, h.MailboxLen())
}

func TestHostIsPausedReflectsPausedField(t *testing.T) {
	h := &Host{}
	assert.False(t, h.IsPaused())

	h.paused = &PausedData{}
	assert.True(t, h.IsPaused())
}
