package debughost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScriptComputesHashAndLineIndex(t *testing.T) {
	s := NewScript("script$1", "file:///a.js", "var x = 1;\nvar y = 2;\n")

	assert.Equal(t, "script$1", s.ID)
	assert.Equal(t, "file:///a.js", s.URL)
	assert.NotEmpty(t, s.ContentsHash)
	assert.Equal(t, []int{0, 11, 22}, s.LineIndex)
}

func TestNewScriptSameSourceSameHash(t *testing.T) {
	a := NewScript("script$1", "file:///a.js", "var x = 1;")
	b := NewScript("script$2", "file:///b.js", "var x = 1;")
	assert.Equal(t, a.ContentsHash, b.ContentsHash)
}

func TestNewScriptParsesSourceAnnotations(t *testing.T) {
	s := NewScript("script$1", "file:///a.js", "var x = 1;\n//# sourceURL=named.js\n")
	assert.Equal(t, "named.js", s.SourceURL)
}

func TestBreakableLocationEnabledDefaultsFalse(t *testing.T) {
	bl := &BreakableLocation{ID: "bl$1"}
	assert.False(t, bl.Enabled())
}

func TestBeforeOrdersByLineThenColumn(t *testing.T) {
	assert.True(t, before(ScriptLocation{Line: 1, Column: 5}, ScriptLocation{Line: 2, Column: 0}))
	assert.True(t, before(ScriptLocation{Line: 3, Column: 1}, ScriptLocation{Line: 3, Column: 5}))
	assert.False(t, before(ScriptLocation{Line: 3, Column: 5}, ScriptLocation{Line: 3, Column: 5}))
}

func TestInRangeRespectsHalfOpenInterval(t *testing.T) {
	from := ScriptLocation{Line: 1, Column: 0}
	to := ScriptLocation{Line: 3, Column: 2}

	assert.False(t, inRange(ScriptLocation{Line: 0, Column: 9}, from, &to))
	assert.True(t, inRange(ScriptLocation{Line: 1, Column: 0}, from, &to))
	assert.True(t, inRange(ScriptLocation{Line: 3, Column: 1}, from, &to))
	assert.False(t, inRange(ScriptLocation{Line: 3, Column: 2}, from, &to))
	assert.False(t, inRange(ScriptLocation{Line: 4, Column: 0}, from, &to))
}

func TestInRangeWithNilUpperBound(t *testing.T) {
	from := ScriptLocation{Line: 1, Column: 0}
	assert.True(t, inRange(ScriptLocation{Line: 1000, Column: 0}, from, nil))
	assert.False(t, inRange(ScriptLocation{Line: 0, Column: 0}, from, nil))
}

func TestGetBreakpointLocationsFiltersByRangeAndScript(t *testing.T) {
	script := &Script{ID: "script$1"}
	inside := &BreakableLocation{ID: "bl$1", Script: script, ScriptLocation: ScriptLocation{Line: 2, Column: 0}}
	outside := &BreakableLocation{ID: "bl$2", Script: script, ScriptLocation: ScriptLocation{Line: 10, Column: 0}}
	script.breakableLoc = []*BreakableLocation{inside, outside}

	h := &Host{
		scriptsByID: map[string]*Script{"script$1": script},
	}

	to := ScriptLocation{Line: 5, Column: 0}
	locs, err := h.GetBreakpointLocations("script$1", ScriptLocation{Line: 1, Column: 0}, &to)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, ScriptLocation{Line: 2, Column: 0}, locs[0])
}

func TestGetBreakpointLocationsUnknownScript(t *testing.T) {
	h := &Host{scriptsByID: map[string]*Script{}}
	_, err := h.GetBreakpointLocations("missing", ScriptLocation{}, nil)
	assert.Error(t, err)
}
