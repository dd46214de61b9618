// Package server is the HTTP boundary layer. It translates requests into
// gateway and query service calls and structured errors into JSON responses.
package server
