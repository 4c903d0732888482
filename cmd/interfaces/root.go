package interfaces

import (
	"fmt"
	"github.com/ValentinKolb/netsock/cmd/util"
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netiface"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var InterfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List the IPv4 interfaces of this host",
	Long:  `List every IPv4 interface address of this host and show which address the server and client would pick when no --address is given.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return util.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	key := "interface-prefix"
	InterfacesCmd.Flags().String(key, "192.168", util.WrapString("Dotted address prefix used to select a physical interface"))
}

func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	prefix, err := netiface.ParseIPv4(viper.GetString("interface-prefix"))
	if err != nil {
		return err
	}

	ifaces, err := netiface.Interfaces()
	if err != nil {
		return err
	}

	for _, iface := range ifaces {
		kind := "virtual"
		if iface.IsPhysical() {
			kind = "physical"
		}
		fmt.Printf("%-16s %-16s %s\n", iface.Name, iface.Address, kind)
	}

	fmt.Println()
	fmt.Printf("selected: %s\n", netiface.SelectPhysical(ifaces, prefix))
	return nil
}
