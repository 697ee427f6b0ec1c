// Package engine supervises the external analysis and remediation
// executables and builds their invocations per engine variant.
package engine
