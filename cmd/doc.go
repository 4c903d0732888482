// Package cmd implements the command-line interface of netsock.
//
// The package is organized into several subpackages:
//
//   - serve: Accepts connections and sends a length-prefixed message to every client
//   - client: Connects to a server and prints the received messages
//   - perf: Measures latency and throughput of the asynchronous socket
//   - interfaces: Lists the IPv4 interfaces of the host
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable NETSOCK_<flag>
// (e.g. NETSOCK_LOG_LEVEL=debug). See netsock -help for a list of all commands.
package cmd
