package debughost

// EvaluatedCodeMarker is the fixed 32-hex-digit token prepended to every
// expression this host evaluates in the target. Scripts whose recovered
// source contains the marker are our own evaluated code reappearing on
// reconnect, and are discarded during registration (spec.md section 4.2).
const EvaluatedCodeMarker = "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4"

// scriptClassPrefix is the Nashorn-internal naming convention for classes
// that host a compiled script body.
const scriptClassPrefix = "jdk.nashorn.internal.scripts.Script$"

// hiddenPropertyPrefix marks property names synthesized by the host itself
// (scope-wrapper change logs, shadow fields) that must never be surfaced to
// a property listing.
const hiddenPropertyPrefix = "||"

// wantedInfrastructureClasses are cached by name when seen during
// registration, rather than treated as script classes: the engine's runtime
// support classes the host later needs handles to (ScriptRuntime.DEBUGGER,
// boxed-primitive valueOf methods, Context.eval).
var wantedInfrastructureClasses = map[string]bool{
	"jdk.nashorn.internal.runtime.ScriptRuntime": true,
	"jdk.nashorn.internal.runtime.Context":       true,
	"java.lang.Boolean":                          true,
	"java.lang.Integer":                          true,
	"java.lang.Long":                              true,
	"java.lang.Double":                            true,
	"java.lang.String":                            true,
}

// InitialScriptResolveAttempts bounds retries recovering a script's source
// while the engine is still populating its reflective fields after
// class-prepare.
const InitialScriptResolveAttempts = 5

// SourceResolveRetryIntervalMS spaces those retries.
const SourceResolveRetryIntervalMS = 50

// QuiescenceWindowMS is how long the event pump waits, with no new
// class-prepare traffic, before declaring initial registration complete.
const QuiescenceWindowMS = 200
