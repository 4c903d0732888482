package serve

import (
	"context"
	"github.com/ValentinKolb/netsock/cmd/util"
	"github.com/ValentinKolb/netsock/lib/asyncsocket"
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the message server",
		Long:    `Start a server that sends a length-prefixed message to every client that connects. The configuration can be set via command line flags or environment variables. The format of the environment variables is NETSOCK_<flag> (e.g. NETSOCK_MESSAGE="Hello")`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	util.SetupAddressFlags(ServeCmd, "8000")
	util.SetupSocketFlags(ServeCmd)

	key := "message"
	ServeCmd.Flags().String(key, "Hello World", util.WrapString("The message sent to every client"))

	key = "count"
	ServeCmd.Flags().Int(key, 1, util.WrapString("How often the message is sent to each client"))

	key = "metrics-endpoint"
	ServeCmd.Flags().String(key, "", util.WrapString("If set, prometheus metrics are served on this address under /metrics (e.g. :9100)"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Address = viper.GetString("address")
	serveCmdConfig.Port = viper.GetString("port")
	serveCmdConfig.InterfacePrefix = viper.GetString("interface-prefix")
	serveCmdConfig.Message = viper.GetString("message")
	serveCmdConfig.Count = viper.GetInt("count")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.Socket = util.GetSocketConf()
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Count < 0 {
		serveCmdConfig.Count = 0
	}
	return nil
}

// run starts the server and serves until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	lib, shutdown, err := util.StartLibrary(serveCmdConfig.LogLevel)
	if err != nil {
		return err
	}
	defer shutdown()

	address, err := util.ResolveAddress(serveCmdConfig.Address, serveCmdConfig.InterfacePrefix)
	if err != nil {
		return err
	}
	serveCmdConfig.Address = address

	util.Logger.Infof("Starting server")
	util.Logger.Infof(serveCmdConfig.String())

	if serveCmdConfig.MetricsEndpoint != "" {
		go serveMetrics(serveCmdConfig.MetricsEndpoint)
	}

	listener, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, serveCmdConfig.Socket)
	if err != nil {
		return err
	}
	defer listener.Close()

	if err := listener.Bind(address, serveCmdConfig.Port); err != nil {
		return err
	}
	if err := listener.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(listener, []byte(serveCmdConfig.Message), serveCmdConfig.Count)
	go func() {
		<-ctx.Done()
		util.Logger.Infof("shutting down")
		srv.shutdown()
	}()

	util.Logger.Infof("listening on %s:%s", address, serveCmdConfig.Port)
	srv.serve()
	return nil
}

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

type server struct {
	listener *asyncsocket.AsyncSocket
	frame    []byte
	count    int
	sessions *xsync.MapOf[uint64, *asyncsocket.AsyncSocket]
	wg       sync.WaitGroup
}

func newServer(listener *asyncsocket.AsyncSocket, message []byte, count int) *server {
	return &server{
		listener: listener,
		frame:    asyncsocket.EncodeLengthPrefixed(message),
		count:    count,
		sessions: xsync.NewMapOf[uint64, *asyncsocket.AsyncSocket](),
	}
}

// serve accepts connections until the listener is closed and waits for all
// sessions to end
func (s *server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.listener.Socket().IsValid() {
				break
			}
			util.Logger.Warningf("failed to accept connection: %v", err)
			continue
		}

		s.sessions.Store(conn.ID(), conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sessions.Delete(conn.ID())
			s.handle(conn)
		}()
	}
	s.wg.Wait()
}

// handle sends the message count times and closes the connection once everything was sent
func (s *server) handle(conn *asyncsocket.AsyncSocket) {
	defer conn.Close()

	if remote, err := conn.Socket().RemoteAddr(); err == nil {
		util.Logger.Infof("client %d connected from %s", conn.ID(), remote)
	}

	for i := 0; i < s.count; i++ {
		if err := conn.Send(s.frame); err != nil {
			util.Logger.Warningf("client %d: failed to queue message: %v", conn.ID(), err)
			return
		}
	}

	if err := conn.Finish(); err != nil {
		util.Logger.Warningf("client %d: %v", conn.ID(), err)
		return
	}
	util.Logger.Infof("client %d: sent %d messages", conn.ID(), s.count)
}

// shutdown closes the listener and every open session
func (s *server) shutdown() {
	_ = s.listener.Close()
	s.sessions.Range(func(_ uint64, conn *asyncsocket.AsyncSocket) bool {
		_ = conn.Close()
		return true
	})
}

func serveMetrics(endpoint string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	util.Logger.Infof("serving metrics on %s/metrics", endpoint)
	if err := http.ListenAndServe(endpoint, mux); err != nil {
		util.Logger.Errorf("metrics endpoint stopped: %v", err)
	}
}
