package client

import (
	"fmt"
	"github.com/ValentinKolb/netsock/cmd/util"
	"github.com/ValentinKolb/netsock/lib/asyncsocket"
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"sync"
)

var (
	clientCmdConfig = &common.ClientConfig{}
	ClientCmd       = &cobra.Command{
		Use:     "client",
		Short:   "Connect to a server and print the received messages",
		Long:    `Connect to a netsock server and print --count length-prefixed messages. The configuration can be set via command line flags or environment variables. The format of the environment variables is NETSOCK_<flag> (e.g. NETSOCK_PORT=8000)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	util.SetupAddressFlags(ClientCmd, "8000")
	util.SetupSocketFlags(ClientCmd)

	key := "count"
	ClientCmd.Flags().Int(key, 1, util.WrapString("How many messages to receive before disconnecting"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	clientCmdConfig.Address = viper.GetString("address")
	clientCmdConfig.Port = viper.GetString("port")
	clientCmdConfig.InterfacePrefix = viper.GetString("interface-prefix")
	clientCmdConfig.Count = viper.GetInt("count")
	clientCmdConfig.Socket = util.GetSocketConf()
	clientCmdConfig.LogLevel = viper.GetString("log-level")

	if clientCmdConfig.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", clientCmdConfig.Count)
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	lib, shutdown, err := util.StartLibrary(clientCmdConfig.LogLevel)
	if err != nil {
		return err
	}
	defer shutdown()

	address, err := util.ResolveAddress(clientCmdConfig.Address, clientCmdConfig.InterfacePrefix)
	if err != nil {
		return err
	}
	clientCmdConfig.Address = address

	util.Logger.Debugf(clientCmdConfig.String())

	conn, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, clientCmdConfig.Socket)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Connect(address, clientCmdConfig.Port); err != nil {
		return err
	}

	return receiveMessages(conn, clientCmdConfig.Count, os.Stdout)
}

// receiveMessages queues count length-prefixed receives and writes every
// payload as one line to out
func receiveMessages(conn *asyncsocket.AsyncSocket, count int, out io.Writer) error {
	formatter := asyncsocket.NewBinaryFormatter(asyncsocket.LengthPrefixed())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	wg.Add(count)
	for i := 0; i < count; i++ {
		err := conn.Receive(formatter, func(data []byte, size int, err error) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				util.Logger.Debugf("receive failed after %d bytes: %v", size, err)
				return
			}
			_, _ = fmt.Fprintf(out, "%s\n", data[asyncsocket.LengthPrefixSize:])
		})
		if err != nil {
			// the handlers of the missing receives will never run
			wg.Add(i - count)
			wg.Wait()
			return err
		}
	}

	finishErr := conn.Finish()
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return finishErr
}
