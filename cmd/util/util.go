package util

import (
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netiface"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

var Logger = logger.GetLogger("cmd")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupAddressFlags adds the flags selecting the remote or local endpoint
func SetupAddressFlags(cmd *cobra.Command, defaultPort string) {
	key := "address"
	cmd.Flags().String(key, "", WrapString("IPv4 address to use. If empty, the address of the physical interface matching --interface-prefix is used"))

	key = "port"
	cmd.Flags().String(key, defaultPort, WrapString("Port number or service name"))

	key = "interface-prefix"
	cmd.Flags().String(key, "192.168", WrapString("Dotted address prefix used to select a physical interface (e.g. 192.168 or 10.0)"))
}

// SetupSocketFlags adds the socket option flags to a command
func SetupSocketFlags(cmd *cobra.Command) {
	defaults := common.DefaultSocketConf()

	key := "socket-write-buffer"
	cmd.Flags().Int(key, 0, WrapString("The size of the socket send buffer (in KB, 0 keeps the os default)"))

	key = "socket-read-buffer"
	cmd.Flags().Int(key, 0, WrapString("The size of the socket receive buffer (in KB, 0 keeps the os default)"))

	key = "socket-tcp-nodelay"
	cmd.Flags().Bool(key, defaults.TCPNoDelay, WrapString("Whether to enable TCP_NODELAY"))

	key = "socket-tcp-keepalive"
	cmd.Flags().Int(key, defaults.TCPKeepAliveSec, WrapString("The keepalive interval (in seconds, 0 disables keepalive probes)"))

	key = "socket-tcp-linger"
	cmd.Flags().Int(key, defaults.TCPLingerSec, WrapString("The linger time on close (in seconds, negative keeps the os default)"))

	key = "socket-max-field-size"
	cmd.Flags().Int(key, defaults.MaxFieldSize/1024, WrapString("The largest length-prefixed field that is accepted (in KB)"))
}

// InitConfig loads .env files and sets up viper to read NETSOCK_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("netsock")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetSocketConf reads the socket options from viper
func GetSocketConf() common.SocketConf {
	return common.SocketConf{
		TCPNoDelay:      viper.GetBool("socket-tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("socket-tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("socket-tcp-linger"),
		WriteBufferSize: viper.GetInt("socket-write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("socket-read-buffer") * 1024,
		MaxFieldSize:    viper.GetInt("socket-max-field-size") * 1024,
	}
}

// ResolveAddress returns address or, if it is empty, the address of the
// physical interface matching prefix
func ResolveAddress(address, prefix string) (string, error) {
	if address != "" {
		return address, nil
	}
	return netiface.PhysicalAddress(prefix)
}

// StartLibrary initializes the socket library and the loggers. The returned
// function shuts the library down again.
func StartLibrary(logLevel string) (*netsocket.Library, func(), error) {
	if err := common.InitLoggers(logLevel); err != nil {
		return nil, nil, err
	}

	lib := netsocket.NewLibrary()
	if err := lib.Init(); err != nil {
		return nil, nil, err
	}
	return lib, func() {
		if err := lib.Shutdown(); err != nil {
			Logger.Warningf("failed to shut down socket library: %v", err)
		}
	}, nil
}
