// Package common holds the ambient pieces shared by the library and the CLI:
// the logger factory plugged into the dragonboat logger facade, the database
// configuration (read from KVMAP_ prefixed environment variables) and the
// Prometheus exposition of the module's metrics.
package common
