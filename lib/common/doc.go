// Package common holds the configuration structs and the logger setup shared
// by the netsock libraries and the command line interface.
//
// Logging goes through dragonboat's logger package: every package declares
// its own logger with logger.GetLogger and InitLoggers installs the custom
// formatter and log level for all of them. A level spec like
// "warn,netsocket=debug" sets a default level and per package overrides.
package common
