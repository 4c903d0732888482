// Package asyncsocket turns a blocking netsocket.Socket into a queue of
// asynchronous transactions executed by a single worker goroutine.
//
// Key Components:
//
//   - AsyncSocket: owns one socket and a FIFO of transactions. Send and
//     Receive enqueue and return immediately, the worker executes the queue
//     in submission order. The first failing transaction ends the socket.
//
//   - BinaryFormatter: an ordered list of field descriptors (Fixed(n) and
//     LengthPrefixed()) describing how one message is read from the stream.
//     The formatter only frames the bytes, the content is up to the caller.
//
// Usage:
//
//	client, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, common.DefaultSocketConf())
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	if err := client.Connect("127.0.0.1", "8000"); err != nil {
//		return err
//	}
//
//	formatter := asyncsocket.NewBinaryFormatter(asyncsocket.LengthPrefixed())
//	_ = client.Receive(formatter, func(data []byte, size int, err error) {
//		if err != nil {
//			return
//		}
//		fmt.Println(string(data[asyncsocket.LengthPrefixSize:]))
//	})
//	_ = client.Finish()
//
// Length prefixes are 4 byte unsigned integers in native byte order unless
// the formatter is configured otherwise with WithByteOrder.
//
// Metrics about executed and abandoned transactions are registered in the
// default VictoriaMetrics set.
package asyncsocket
