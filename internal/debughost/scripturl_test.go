package debughost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScriptURLForms(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"file triple slash", "file:///tmp/a.js", "file:///tmp/a.js"},
		{"unix absolute path", "/tmp/a.js", "file:///tmp/a.js"},
		{"http passthrough", "http://example.com/a.js", "http://example.com/a.js"},
		{"https passthrough", "https://example.com/a.js", "https://example.com/a.js"},
		{"data passthrough", "data:text/javascript,1", "data:text/javascript,1"},
		{"eval passthrough", "eval:///Foo/bar", "eval:///Foo/bar"},
		{"windows drive", `C:\tmp\a.js`, "file:///C/tmp/a.js"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := NewScriptURL(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, u.String())
		})
	}
}

func TestNewScriptURLRejectsRelativePaths(t *testing.T) {
	_, err := NewScriptURL("relative/path.js")
	require.Error(t, err)
}

func TestParseSourceAnnotations(t *testing.T) {
	src := "var x = 1;\n//# sourceMappingURL=a.js.map\n//# sourceURL=a.js\n"
	mapURL, srcURL := parseSourceAnnotations(src)
	assert.Equal(t, "a.js.map", mapURL)
	assert.Equal(t, "a.js", srcURL)
}

func TestParseSourceAnnotationsAbsent(t *testing.T) {
	mapURL, srcURL := parseSourceAnnotations("var x = 1;\n")
	assert.Empty(t, mapURL)
	assert.Empty(t, srcURL)
}

func TestEvalScriptPath(t *testing.T) {
	got := evalScriptPath(scriptClassPrefix + "Foo.eval")
	assert.Equal(t, "eval:///Foo", got)
}

func TestEvalScriptPathStripsNashornMangling(t *testing.T) {
	got := evalScriptPath(scriptClassPrefix + "Foo$bar^baz_.eval")
	assert.Equal(t, "eval:///Foobarbaz", got)
}
