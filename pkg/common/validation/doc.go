// Package validation provides common configuration validation helpers
// shared by flowgate controllers.
package validation
