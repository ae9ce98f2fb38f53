package main

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.bug.st/serial"
)

const serialRxBuffer = 4096

// SerialPort wraps a go.bug.st/serial port. A reader goroutine moves incoming
// bytes into a buffered channel so the controller can poll without blocking.
type SerialPort struct {
	name string
	port serial.Port
	rx   chan byte
	done chan struct{}

	closing atomic.Bool
}

// OpenSerial opens the named serial device at the given baud rate and starts
// its reader.
func OpenSerial(name string, baud int) (*SerialPort, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return newSerialPort(name, p), nil
}

func newSerialPort(name string, p serial.Port) *SerialPort {
	s := &SerialPort{
		name: name,
		port: p,
		rx:   make(chan byte, serialRxBuffer),
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *SerialPort) readLoop() {
	defer close(s.done)
	buf := make([]byte, 256)
	dropped := 0
	for {
		n, err := s.port.Read(buf)
		if err != nil {
			var perr *serial.PortError
			if s.closing.Load() || errors.As(err, &perr) && perr.Code() == serial.PortClosed {
				logger.Debug("serial: reader stopped", "device", s.name)
			} else {
				logger.Warn("serial: read error", "device", s.name, "err", err)
			}
			return
		}
		for _, b := range buf[:n] {
			select {
			case s.rx <- b:
			default:
				dropped++
			}
		}
		if dropped > 0 {
			logger.Warn("serial: receive buffer full, bytes dropped", "device", s.name, "count", dropped)
			dropped = 0
		}
	}
}

// PollByte returns the next received byte, if any.
func (s *SerialPort) PollByte() (byte, bool) {
	select {
	case b := <-s.rx:
		return b, true
	default:
		return 0, false
	}
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Close closes the underlying serial port and waits for the reader.
func (s *SerialPort) Close() error {
	logger.Info("serial: closing port", "device", s.name)
	s.closing.Store(true)
	err := s.port.Close()
	<-s.done
	return err
}

// RemoteSerial polls the secondary controller: one trigger byte out, at most
// one status byte in per cycle.
type RemoteSerial struct {
	*SerialPort
	trigger [1]byte
}

func NewRemoteSerial(sp *SerialPort) *RemoteSerial {
	return &RemoteSerial{SerialPort: sp, trigger: [1]byte{RemoteTrigger}}
}

func (r *RemoteSerial) Request() error {
	_, err := r.Write(r.trigger[:])
	return err
}

func (r *RemoteSerial) Status() (byte, bool) {
	return r.PollByte()
}

// SerialPorts lists the serial devices present on the host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial: list ports: %w", err)
	}
	return ports, nil
}
