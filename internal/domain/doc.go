// Package domain holds the core types and ports of the sentiment pipeline.
// It has no dependencies on other internal packages; every other package
// depends on it, never the other way around.
package domain
