// -- cmd/version.go --
package cmd

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"
