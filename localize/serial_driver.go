package localize

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// PortOptions describes the serial connection parameters for a range sensor
type PortOptions struct {
	BaudRate int    `yaml:"baudRate" json:"baud_rate"`
	DataBits int    `yaml:"dataBits" json:"data_bits"`
	StopBits int    `yaml:"stopBits" json:"stop_bits"`
	Parity   string `yaml:"parity" json:"parity"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	opts.Parity = parity
	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial expects
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
	}

	switch opts.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode, nil
}

// SerialDriver reads newline-delimited samples from a serial range sensor.
// Monitor must be running for the driver to report anything other than
// max-range.
type SerialDriver struct {
	port   io.ReadCloser
	latest *latestSample

	closeOnce sync.Once
}

// NewSerialDriver wraps an already-open port. Samples older than maxAge are
// reported as max-range; maxAge <= 0 disables the staleness check.
func NewSerialDriver(port io.ReadCloser, maxAge time.Duration) *SerialDriver {
	return &SerialDriver{
		port:   port,
		latest: newLatestSample(maxAge),
	}
}

// OpenSerialDriver opens the serial device at path
func OpenSerialDriver(path string, opts PortOptions, maxAge time.Duration) (*SerialDriver, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}

	return NewSerialDriver(port, maxAge), nil
}

// Monitor reads lines from the port until ctx is cancelled or the port
// fails. Unparseable lines are logged and skipped.
func (d *SerialDriver) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(d.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return fmt.Errorf("reading serial sensor: %w", err)

		case line, ok := <-lineChan:
			if !ok {
				return nil
			}
			d.handleLine(line)
		}
	}
}

func (d *SerialDriver) handleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	raw, err := ParseSample([]byte(line))
	if err != nil {
		log.Printf("Skipping serial sample %q: %v", line, err)
		return
	}
	if !validSample(raw) {
		log.Printf("Skipping non-finite serial sample %q", line)
		return
	}
	d.latest.store(raw)
}

// Sample returns the latest distance and confidence together
func (d *SerialDriver) Sample() RawMeasurement {
	return d.latest.load()
}

func (d *SerialDriver) Distance() float64 {
	return d.latest.load().DistanceMM
}

func (d *SerialDriver) Confidence() float64 {
	return d.latest.load().Confidence
}

// LastUpdate returns when the last valid sample arrived
func (d *SerialDriver) LastUpdate() time.Time {
	return d.latest.lastUpdate()
}

// Close closes the underlying port
func (d *SerialDriver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.port.Close()
	})
	return err
}
