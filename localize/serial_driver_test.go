package localize

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_Normalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: " even "}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}, opts)

	for _, bad := range []PortOptions{
		{DataBits: 9},
		{DataBits: 4},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		_, err := bad.Normalize()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{Parity: "odd", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.OddParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	mode, err = PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	_, err = PortOptions{Parity: "space"}.SerialMode()
	assert.Error(t, err)
}

func TestSerialDriver_MonitorUpdatesSample(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewSerialDriver(pr, 0)
	defer d.Close()

	assert.Equal(t, faultSample(), d.Sample(), "max range until the first line")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Monitor(ctx) }()

	_, err := io.WriteString(pw, "812,63\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return d.Distance() == 812 && d.Confidence() == 63
	}, time.Second, 5*time.Millisecond)
	assert.False(t, d.LastUpdate().IsZero())

	// garbage and blank lines are skipped without clobbering the sample
	_, err = io.WriteString(pw, "\nnot-a-number\nNaN,10\n{\"distance\": 455}\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return d.Sample() == RawMeasurement{DistanceMM: 455, Confidence: ConfidenceMax}
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, pw.Close())
	select {
	case err := <-done:
		assert.NoError(t, err, "EOF ends the monitor cleanly")
	case <-time.After(time.Second):
		t.Fatal("monitor did not exit on EOF")
	}
}

func TestSerialDriver_MonitorStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	d := NewSerialDriver(pr, 0)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("monitor did not exit on cancel")
	}
}

func TestSerialDriver_MonitorReportsReadError(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewSerialDriver(pr, 0)

	done := make(chan error, 1)
	go func() { done <- d.Monitor(context.Background()) }()

	pw.CloseWithError(errors.New("device unplugged"))
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device unplugged")
	case <-time.After(time.Second):
		t.Fatal("monitor did not report the read error")
	}
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close(), "close is idempotent")
}

func TestSerialDriver_Stale(t *testing.T) {
	d := NewSerialDriver(io.NopCloser(strings.NewReader("")), 50*time.Millisecond)
	clock := time.Now()
	d.latest.now = func() time.Time { return clock }

	d.handleLine("300,64")
	assert.Equal(t, 300.0, d.Distance())

	clock = clock.Add(time.Second)
	assert.True(t, math.IsInf(d.Distance(), 1), "stale sample is a fault, got %v", d.Distance())
	assert.Equal(t, 0.0, d.Confidence())
}
