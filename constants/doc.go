// Package constants centralizes header names and response vocabulary shared
// across packages.
package constants
