package cmd

import (
	"fmt"
	"github.com/ValentinKolb/netsock/cmd/client"
	"github.com/ValentinKolb/netsock/cmd/interfaces"
	"github.com/ValentinKolb/netsock/cmd/perf"
	"github.com/ValentinKolb/netsock/cmd/serve"
	"github.com/ValentinKolb/netsock/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "netsock",
		Short: "asynchronous socket toolkit",
		Long: fmt.Sprintf(`netsock (v%s)

A blocking socket with full-transfer semantics and an asynchronous
transaction queue on top of it. The commands run a small length-prefixed
message server, a matching client and a throughput test.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of netsock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("netsock v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(client.ClientCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(interfaces.InterfacesCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error). Single packages can be overridden, e.g. warn,netsocket=debug"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
