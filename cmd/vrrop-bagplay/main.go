// Command vrrop-bagplay either records a live ClientCore session to a
// bag directory, or replays a bag directory at its recorded pacing,
// logging each odometry event and each decoded images frame. Replay does
// not drive a ClientCore or its on_images/on_odometry callbacks.
//
// Usage:
//
//	vrrop-bagplay record -server=host:port -bag=./bagdir
//	vrrop-bagplay replay -bag=./bagdir
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vrrop/vrrop/internal/clientcore"
	"github.com/vrrop/vrrop/internal/codec"
	"github.com/vrrop/vrrop/internal/fsutil"
	"github.com/vrrop/vrrop/internal/recorderplayer"
	"github.com/vrrop/vrrop/internal/timeutil"
	"github.com/vrrop/vrrop/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	mode := os.Args[1]
	args := os.Args[2:]

	switch mode {
	case "record":
		runRecord(args)
	case "replay":
		runReplay(args)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vrrop-bagplay record|replay [flags]")
	os.Exit(1)
}

func runRecord(args []string) {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	serverAddr := fs.String("server", "127.0.0.1:7878", "vrrop-server data-plane address")
	bagDir := fs.String("bag", "./bag", "directory to write the recording into")
	jpegQuality := fs.Int("jpeg-quality", 70, "re-encode quality for recorded color frames")
	fs.Parse(args)

	rec, err := recorderplayer.NewRecorder(fsutil.OSFileSystem{}, *bagDir)
	if err != nil {
		log.Fatalf("vrrop-bagplay: opening bag directory: %v", err)
	}

	pool := codec.NewPool(1)
	client := clientcore.New(*serverAddr,
		clientcore.WithOnOdometry(func(o wire.Odometry) {
			if err := rec.RecordOdometry(o); err != nil {
				log.Printf("vrrop-bagplay: record odometry: %v", err)
			}
		}),
		clientcore.WithOnImages(func(msg wire.ImagesMessage) {
			encoded, err := pool.EncodeImages(msg, *jpegQuality)
			if err != nil {
				log.Printf("vrrop-bagplay: re-encoding frame for recording: %v", err)
				return
			}
			if err := rec.RecordImages(encoded); err != nil {
				log.Printf("vrrop-bagplay: record images: %v", err)
			}
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("vrrop-bagplay: recording %s into %s", *serverAddr, *bagDir)
	client.Run(ctx)
}

func runReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	bagDir := fs.String("bag", "./bag", "bag directory to replay")
	fs.Parse(args)

	clock := timeutil.RealClock{}
	player, err := recorderplayer.NewPlayer(fsutil.OSFileSystem{}, *bagDir, clock)
	if err != nil {
		log.Fatalf("vrrop-bagplay: opening bag: %v", err)
	}

	pool := codec.NewPool(1)
	player.Start()
	log.Printf("vrrop-bagplay: replaying %d events from %s", player.TotalEvents(), *bagDir)

	for {
		when, ok := player.PollNextEventTime()
		if !ok {
			break
		}
		clock.Sleep(clock.Until(when))

		event, err := player.NextEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("vrrop-bagplay: reading next event: %v", err)
		}

		switch {
		case event.Odometry != nil:
			log.Printf("vrrop-bagplay: odometry stamp=%d translation=%v", event.Odometry.StampUnixNanos, event.Odometry.Translation)
		case event.Images != nil:
			decoded, err := pool.DecodeImages(*event.Images)
			if err != nil {
				log.Printf("vrrop-bagplay: decoding replayed frame: %v", err)
				continue
			}
			log.Printf("vrrop-bagplay: images frame stamp=%d color=%dx%d", decoded.Odometry.StampUnixNanos, decoded.Color.Intrinsics.Width, decoded.Color.Intrinsics.Height)
		}
	}
	log.Println("vrrop-bagplay: replay complete")
}
