package serialmux

import "io"

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortOpener opens a port at path. Production code uses OpenSerialPort;
// tests substitute a function returning a TestableSerialPort.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)
