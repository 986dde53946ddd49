//go:build arenadebug

package arena

// debugAssertions enables the internal consistency checks. Build with
// -tags arenadebug to turn them on.
const debugAssertions = true
