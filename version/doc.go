// Package version exposes the build version for the CLI and the health
// endpoint.
package version
