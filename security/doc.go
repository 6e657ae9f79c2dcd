// Package security builds client TLS settings for the outbound event sinks.
package security
