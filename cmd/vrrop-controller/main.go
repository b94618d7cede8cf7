// Command vrrop-controller is the embedded-side binary: it opens the
// real serial port to the motor subsystem, runs the Framer send loop
// translating teleop commands into motor-control frames, and listens
// for ControlLink teleop datagrams on -control-addr.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os/signal"
	"syscall"

	"go.bug.st/serial"

	"github.com/vrrop/vrrop/internal/controllink"
	"github.com/vrrop/vrrop/internal/framer"
	"github.com/vrrop/vrrop/internal/version"
	"github.com/vrrop/vrrop/internal/wire"
)

var (
	serialDevice = flag.String("serial-device", "/dev/ttyUSB0", "motor subsystem serial device path")
	baudRate     = flag.Int("baud", 115200, "serial baud rate")
	controlAddr  = flag.String("control-addr", ":7879", "ControlLink listen address (host:port)")
	versionFlag  = flag.Bool("version", false, "print version and exit")
)

// legLengthToTurnRate converts a SetLegLength command (expressed as a
// fraction in [-1, 1] of max differential turn) into the same mrad/s
// unit SetTargetVelocity uses, so both ControlMessage variants drive
// one motor-control frame shape.
func legLengthToTurnRate(legLength float32) int16 {
	const maxTurnMradS = 2000
	return int16(math.Round(float64(legLength) * maxTurnMradS))
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("vrrop-controller v%s (git SHA: %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	mode := &serial.Mode{
		BaudRate: *baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(*serialDevice, mode)
	if err != nil {
		log.Fatalf("vrrop-controller: opening serial device %s: %v", *serialDevice, err)
	}
	defer port.Close()

	f := framer.New(port)

	link := controllink.New(controllink.WithOnMessage(func(msg wire.ControlMessage) {
		var motor wire.MotorControlFrame
		switch msg.Kind {
		case wire.ControlSetTargetVelocity:
			motor = wire.MotorControlFrame{
				ForwardVelMMs: int16(math.Round(float64(msg.Forward) * 1000)),
				TurnVelMradS:  int16(math.Round(float64(msg.Turn) * 1000)),
			}
		case wire.ControlSetLegLength:
			motor = wire.MotorControlFrame{TurnVelMradS: legLengthToTurnRate(msg.LegLength)}
		}

		if err := f.Send(wire.EncodeMotorControlFrame(motor)); err != nil {
			log.Printf("vrrop-controller: framer send failed: %v", err)
		}
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	link.Run(ctx, *controlAddr)
	log.Println("vrrop-controller: shutdown complete")
}
