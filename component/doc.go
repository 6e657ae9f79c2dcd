// Package component defines the lifecycle contract shared by the
// infrastructure pieces of the service: the database, the HTTP server, the
// event stream and the optional redis and kafka sinks.
//
// A Registry starts components in registration order, stops them in
// reverse and aggregates their health for the /healthz endpoint.
package component
