package perf

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/netsock/cmd/util"
	"github.com/ValentinKolb/netsock/lib/asyncsocket"
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strconv"
	"time"
)

var (
	perfCmdConfig = &common.ClientConfig{}
	perfCSVPath   = ""
	PerfCmd       = &cobra.Command{
		Use:     "perf",
		Short:   "Measure latency and throughput of the asynchronous socket",
		Long:    `Starts a sink server in-process, sends --count messages of --size bytes to it through an asynchronous socket and reports latency and throughput.`,
		PreRunE: processPerfConfig,
		RunE:    run,
	}
)

func init() {
	util.SetupSocketFlags(PerfCmd)

	key := "address"
	PerfCmd.Flags().String(key, "127.0.0.1", util.WrapString("Address the sink server binds to"))
	key = "count"
	PerfCmd.Flags().Int(key, 10000, util.WrapString("Number of messages to send"))
	key = "size"
	PerfCmd.Flags().Int(key, 1024, util.WrapString("Payload size of each message (in bytes)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfCmdConfig.Address = viper.GetString("address")
	perfCmdConfig.Port = "0"
	perfCmdConfig.Count = viper.GetInt("count")
	perfCmdConfig.Size = viper.GetInt("size")
	perfCmdConfig.Socket = util.GetSocketConf()
	perfCmdConfig.LogLevel = viper.GetString("log-level")
	perfCSVPath = viper.GetString("csv")

	if perfCmdConfig.Count < 1 || perfCmdConfig.Size < 0 {
		return fmt.Errorf("invalid count %d or size %d", perfCmdConfig.Count, perfCmdConfig.Size)
	}
	if perfCmdConfig.Size > perfCmdConfig.Socket.MaxFieldSize && perfCmdConfig.Socket.MaxFieldSize > 0 {
		return fmt.Errorf("size %d exceeds the max field size %d", perfCmdConfig.Size, perfCmdConfig.Socket.MaxFieldSize)
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	lib, shutdown, err := util.StartLibrary(perfCmdConfig.LogLevel)
	if err != nil {
		return err
	}
	defer shutdown()

	fmt.Println("Performance testing tool for netsock")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(perfCmdConfig.String())
	fmt.Println()

	fmt.Println("starting test...")

	result, err := Run(lib, *perfCmdConfig)
	if err != nil {
		return err
	}

	fmt.Println()
	printResult(result)

	if perfCSVPath != "" {
		if err := writeResultToCSV(perfCSVPath, result, perfCmdConfig); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", perfCSVPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Benchmark
// --------------------------------------------------------------------------

// Result holds the measurements of one run
type Result struct {
	Messages  int64
	Bytes     int64
	Elapsed   time.Duration
	Latency   gometrics.Timer
	Bandwidth gometrics.Meter
}

// Run sends conf.Count messages of conf.Size bytes from a client socket to a
// sink socket on conf.Address and measures the time from queueing a message
// to its complete receipt
func Run(lib *netsocket.Library, conf common.ClientConfig) (*Result, error) {
	registry := gometrics.NewRegistry()
	result := &Result{
		Latency:   gometrics.NewRegisteredTimer("latency", registry),
		Bandwidth: gometrics.NewRegisteredMeter("bandwidth", registry),
	}
	defer result.Bandwidth.Stop()

	// sink server
	listener, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, conf.Socket)
	if err != nil {
		return nil, err
	}
	defer listener.Close()

	if err := listener.Bind(conf.Address, conf.Port); err != nil {
		return nil, err
	}
	if err := listener.Listen(); err != nil {
		return nil, err
	}
	local, err := listener.Socket().LocalAddr()
	if err != nil {
		return nil, err
	}

	accepted := make(chan *asyncsocket.AsyncSocket, 1)
	acceptErr := make(chan error, 1)
	go func() {
		sink, err := listener.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- sink
	}()

	// sending side
	sender, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, conf.Socket)
	if err != nil {
		return nil, err
	}
	defer sender.Close()

	if err := sender.Connect(conf.Address, strconv.Itoa(int(local.Port()))); err != nil {
		return nil, err
	}

	var sink *asyncsocket.AsyncSocket
	select {
	case sink = <-accepted:
	case err := <-acceptErr:
		return nil, err
	}
	defer sink.Close()

	// queue every receive up front, sent timestamps travel through a channel
	sentAt := make(chan time.Time, conf.Count)
	done := make(chan error, 1)
	received := 0
	formatter := asyncsocket.NewBinaryFormatter(asyncsocket.LengthPrefixed())
	for i := 0; i < conf.Count; i++ {
		err := sink.Receive(formatter, func(data []byte, size int, err error) {
			if err != nil {
				select {
				case done <- err:
				default:
				}
				return
			}
			result.Latency.UpdateSince(<-sentAt)
			result.Bandwidth.Mark(int64(size))
			received++
			if received == conf.Count {
				done <- nil
			}
		})
		if err != nil {
			return nil, err
		}
	}

	frame := asyncsocket.EncodeLengthPrefixed(make([]byte, conf.Size))
	start := time.Now()
	for i := 0; i < conf.Count; i++ {
		sentAt <- time.Now()
		if err := sender.Send(frame); err != nil {
			return nil, err
		}
	}

	if err := sender.Finish(); err != nil {
		return nil, err
	}
	if err := <-done; err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(start)
	result.Messages = result.Latency.Count()
	result.Bytes = result.Bandwidth.Count()
	return result, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printResult prints the result of a run in a formatted way
func printResult(result *Result) {
	latency := result.Latency.Snapshot()
	ps := latency.Percentiles([]float64{0.5, 0.95, 0.99})

	seconds := result.Elapsed.Seconds()
	if seconds <= 0 {
		seconds = 1e-9 // prevent division by zero
	}

	fmt.Printf("%-20s%d\n", "messages", result.Messages)
	fmt.Printf("%-20s%s\n", "elapsed", result.Elapsed)
	fmt.Printf("%-20s%.0f msg/sec\n", "rate", float64(result.Messages)/seconds)
	fmt.Printf("%-20s%.2f MB/sec\n", "throughput", float64(result.Bytes)/seconds/(1024*1024))
	fmt.Printf("%-20s%s\n", "latency mean", time.Duration(latency.Mean()))
	fmt.Printf("%-20s%s\n", "latency p50", time.Duration(ps[0]))
	fmt.Printf("%-20s%s\n", "latency p95", time.Duration(ps[1]))
	fmt.Printf("%-20s%s\n", "latency p99", time.Duration(ps[2]))
	fmt.Printf("%-20s%s\n", "latency max", time.Duration(latency.Max()))
}

// writeResultToCSV writes the result of a run to a CSV file
func writeResultToCSV(csvPath string, result *Result, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Messages", "PayloadSize", "ElapsedNs", "MsgPerSec", "BytesPerSec",
		"LatencyMeanNs", "LatencyP50Ns", "LatencyP99Ns", "LatencyMaxNs",
		"TCPNoDelay", "WriteBuffer", "ReadBuffer",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	latency := result.Latency.Snapshot()
	ps := latency.Percentiles([]float64{0.5, 0.99})
	seconds := result.Elapsed.Seconds()
	if seconds <= 0 {
		seconds = 1e-9
	}

	row := []string{
		strconv.FormatInt(result.Messages, 10),
		strconv.Itoa(config.Size),
		strconv.FormatInt(result.Elapsed.Nanoseconds(), 10),
		fmt.Sprintf("%.0f", float64(result.Messages)/seconds),
		fmt.Sprintf("%.0f", float64(result.Bytes)/seconds),
		fmt.Sprintf("%.0f", latency.Mean()),
		fmt.Sprintf("%.0f", ps[0]),
		fmt.Sprintf("%.0f", ps[1]),
		strconv.FormatInt(latency.Max(), 10),
		strconv.FormatBool(config.Socket.TCPNoDelay),
		strconv.Itoa(config.Socket.WriteBufferSize),
		strconv.Itoa(config.Socket.ReadBufferSize),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write result row: %v", err)
	}
	return nil
}
