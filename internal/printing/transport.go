package printing

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrTransport marks a delivery failure. The worker treats any Send error as
// retryable, so the sentinel mostly serves logs and tests.
var ErrTransport = errors.New("printing: transport error")

// Transport ships one rendered payload to a physical printer.
type Transport interface {
	Send(payload string) error
}

// TCPTransport writes raw TSPL to a label printer's jetdirect port (9100).
// Every job opens a fresh connection; thermal printers drop idle sockets.
type TCPTransport struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func NewTCPTransport(host string, port int, timeout time.Duration) *TCPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TCPTransport{Host: host, Port: port, Timeout: timeout}
}

func (t *TCPTransport) Send(payload string) error {
	addr := fmt.Sprintf("%s:%d", t.Host, t.Port)
	conn, err := net.DialTimeout("tcp", addr, t.Timeout)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(t.Timeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %v", ErrTransport, err)
	}
	if _, err := conn.Write([]byte(payload)); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrTransport, addr, err)
	}
	return nil
}

// FileTransport decodes base64 PNG payloads and hands the bytes to a sink.
// Used for the raster target where an external driver owns the device.
type FileTransport struct {
	WriteFn func(data []byte) error
}

func (t *FileTransport) Send(payload string) error {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: decode png payload: %v", ErrTransport, err)
	}
	return t.WriteFn(data)
}
