package transport

import (
	"context"
	"errors"
	"io"

	"github.com/tarm/serial"
)

// serialPort adapts tarm/serial to a plain stream. The port is opened with a
// read timeout so a blocked Read returns regularly; tarm reports an expired
// timeout as io.EOF, which here means "nothing yet".
type serialPort struct {
	*serial.Port
}

func openSerial(_ context.Context, cfg *Config) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.SerialPort,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout.Duration(),
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, err
	}

	return &serialPort{port}, nil
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}
