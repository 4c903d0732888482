package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket configuration struct
// --------------------------------------------------------------------------

// SocketConf holds the OS level options applied to a connected socket.
// Zero values leave the OS default in place, except TCPLingerSec where a
// negative value means "do not touch".
type SocketConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	WriteBufferSize int
	ReadBufferSize  int

	// MaxFieldSize bounds a single length-prefixed field of a receive
	MaxFieldSize int
}

// DefaultSocketConf returns the options used when nothing is configured
func DefaultSocketConf() SocketConf {
	return SocketConf{
		TCPNoDelay:   true,
		TCPLingerSec: -1,
		MaxFieldSize: 64 * 1024 * 1024,
	}
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the serve command
type ServerConfig struct {
	// Address and Port the server binds to, an empty Address selects the
	// physical interface matching InterfacePrefix
	Address         string
	Port            string
	InterfacePrefix string

	// Message is sent Count times to every accepted client
	Message string
	Count   int

	// MetricsEndpoint exposes prometheus metrics if not empty (e.g. :9100)
	MetricsEndpoint string

	Socket SocketConf

	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection, addField := formatHelpers(&sb)

	addSection("Server")
	addField("Address", c.Address)
	addField("Port", c.Port)
	addField("Interface Prefix", c.InterfacePrefix)
	addField("Message", strconv.Quote(c.Message))
	addField("Count", strconv.Itoa(c.Count))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	writeSocketConf(&sb, c.Socket)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters of the client commands
type ClientConfig struct {
	Address         string
	Port            string
	InterfacePrefix string

	// Count is the number of messages to receive (client) or send (perf)
	Count int
	// Size is the payload size in bytes used by perf
	Size int

	Socket SocketConf

	LogLevel string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection, addField := formatHelpers(&sb)

	addSection("Client")
	addField("Address", c.Address)
	addField("Port", c.Port)
	addField("Interface Prefix", c.InterfacePrefix)
	addField("Count", strconv.Itoa(c.Count))
	if c.Size > 0 {
		addField("Payload Size", fmt.Sprintf("%d bytes", c.Size))
	}

	writeSocketConf(&sb, c.Socket)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatHelpers(sb *strings.Builder) (func(string), func(string, string)) {
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}

func writeSocketConf(sb *strings.Builder, s SocketConf) {
	addSection, addField := formatHelpers(sb)

	addSection("Socket")
	addField("TCP No Delay", strconv.FormatBool(s.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", s.TCPKeepAliveSec))
	if s.TCPLingerSec >= 0 {
		addField("TCP Linger", fmt.Sprintf("%d sec", s.TCPLingerSec))
	} else {
		addField("TCP Linger", "os default")
	}
	addField("Write Buffer", fmt.Sprintf("%d bytes", s.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", s.ReadBufferSize))
	addField("Max Field Size", fmt.Sprintf("%d bytes", s.MaxFieldSize))
}
