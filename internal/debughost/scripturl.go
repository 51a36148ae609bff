package debughost

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ScriptURL is a normalized script location, one of the four forms spec.md
// section 6 allows: file://, eval://, data:/http(s):// passthrough.
type ScriptURL struct {
	raw string
}

var windowsDriveRe = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// NewScriptURL coerces an arbitrary input path/URL into one of the
// supported forms. Relative paths are rejected.
func NewScriptURL(input string) (ScriptURL, error) {
	switch {
	case strings.HasPrefix(input, "data:"), strings.HasPrefix(input, "http://"), strings.HasPrefix(input, "https://"):
		return ScriptURL{raw: input}, nil

	case strings.HasPrefix(input, "eval://"):
		return ScriptURL{raw: input}, nil

	case strings.HasPrefix(input, "file:///"):
		return ScriptURL{raw: "file://" + path.Clean(strings.TrimPrefix(input, "file://"))}, nil

	case strings.HasPrefix(input, "file:/"):
		rest := strings.TrimPrefix(input, "file:")
		return ScriptURL{raw: "file://" + path.Clean(rest)}, nil

	case windowsDriveRe.MatchString(input):
		unix := "/" + strings.ReplaceAll(strings.Replace(input, "\\", "/", -1), ":", "")
		return ScriptURL{raw: "file://" + path.Clean(unix)}, nil

	case strings.HasPrefix(input, "/"):
		return ScriptURL{raw: "file://" + path.Clean(input)}, nil

	default:
		return ScriptURL{}, fmt.Errorf("debughost: relative script path rejected: %q", input)
	}
}

func (u ScriptURL) String() string { return u.raw }

// normalizeScriptURL runs s through NewScriptURL's section 6 coercion,
// falling back to s unchanged when NewScriptURL rejects it as a relative
// path -- the common case for a bare JDWP source-name like "main.js" that
// carries no directory information to anchor a file:// form to.
func normalizeScriptURL(s string) string {
	u, err := NewScriptURL(s)
	if err != nil {
		return s
	}
	return u.String()
}

// evalScriptPath synthesizes the "eval:///" path used for script classes
// whose source-name is "<eval>": the class name with the Nashorn internal
// package prefix stripped, "$"/"^"/"_" removed, "." replaced by "/", and a
// trailing "/eval" segment stripped.
func evalScriptPath(className string) string {
	name := strings.TrimPrefix(className, scriptClassPrefix)
	name = strings.NewReplacer("$", "", "^", "", "_", "").Replace(name)
	name = strings.ReplaceAll(name, ".", "/")
	name = strings.TrimSuffix(name, "/eval")
	return "eval:///" + name
}

// parseSourceAnnotations extracts a trailing "//# sourceMappingURL=" and/or
// "//# sourceURL=" comment from recovered source text, as DevTools-style
// tooling does.
func parseSourceAnnotations(src string) (sourceMapURL, sourceURL string) {
	lines := strings.Split(src, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "//# sourceMappingURL="); ok {
			sourceMapURL = v
		}
		if v, ok := strings.CutPrefix(line, "//# sourceURL="); ok {
			sourceURL = v
		}
	}
	return sourceMapURL, sourceURL
}
