// -- cmd/version.go --
package cmd

// Version is the application version, overridable at build time via
// -ldflags "-X github.com/xkilldash9x/framewalk/cmd.Version=...".
var Version = "0.1.0"
