// Package testutil contains helpers used across tests to script completion
// providers, mock tools and build conversation turns. It is not intended
// for production usage.
package testutil
