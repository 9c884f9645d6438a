// Package version provides version information for the price engine.
package version

// Version is the current version of the price engine.
const Version = "0.4.0"

// AgentString returns the agent string sent to external price sources.
// Format: abrigo-price-engine/{version}
func AgentString() string {
	return "abrigo-price-engine/" + Version
}
