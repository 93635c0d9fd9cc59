// Package version provides version information for the client.
package version

// Version is the semantic version, set at build time using -ldflags.
var Version = "dev"
