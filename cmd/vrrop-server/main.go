// Command vrrop-server hosts the robot side of VRROP: ServerCore's
// WebSocket+UDP data plane, ControlLink's UDP teleop plane, the
// sessiondb connection log, and the admin debug routes. In the absence
// of a real SLAM front end, it drives ServerCore from a synthetic
// capture stub so the pipeline can be exercised end to end locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrrop/vrrop/internal/admin"
	"github.com/vrrop/vrrop/internal/codec"
	"github.com/vrrop/vrrop/internal/config"
	"github.com/vrrop/vrrop/internal/controllink"
	"github.com/vrrop/vrrop/internal/servercore"
	"github.com/vrrop/vrrop/internal/sessiondb"
	"github.com/vrrop/vrrop/internal/version"
	"github.com/vrrop/vrrop/internal/wire"
)

var (
	configPath   = flag.String("config", "", "optional JSON config file overriding defaults")
	dataAddr     = flag.String("data-addr", "", "data-plane bind address (host:port); overrides config")
	controlAddr  = flag.String("control-addr", "", "control-plane bind address (host:port); overrides config")
	adminAddr    = flag.String("admin-addr", ":7880", "admin debug HTTP bind address")
	codecWorkers = flag.Int("codec-workers", 2, "concurrent JPEG/PNG encode workers")
	versionFlag  = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("vrrop-server v%s (git SHA: %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.Empty()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("vrrop-server: loading config: %v", err)
		}
		cfg = loaded
	}

	data := *dataAddr
	if data == "" {
		data = udpHostPort(cfg.DataPlanePortOrDefault())
	}
	control := *controlAddr
	if control == "" {
		control = udpHostPort(cfg.ControlPlanePortOrDefault())
	}

	registry, err := sessiondb.Open(cfg.SessionDBPathOrDefault())
	if err != nil {
		log.Fatalf("vrrop-server: opening session registry: %v", err)
	}
	defer registry.Close()

	core := servercore.New(
		servercore.WithImageThrottle(cfg.ImageThrottleIntervalOrDefault()),
		servercore.WithReconnectBackoff(cfg.ReconnectBackoffOrDefault()),
		servercore.WithSessionRecorder(registry),
		servercore.WithOnCommand(func(cmd wire.Command) {
			log.Printf("vrrop-server: command received: kind=%d", cmd.Kind)
		}),
	)

	link := controllink.New(
		controllink.WithReconnectBackoff(cfg.ReconnectBackoffOrDefault()),
		controllink.WithOnMessage(func(msg wire.ControlMessage) {
			log.Printf("vrrop-server: teleop message: kind=%d", msg.Kind)
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		core.Run(ctx, data, data)
	}()

	go func() {
		defer wg.Done()
		link.Run(ctx, control)
	}()

	go func() {
		defer wg.Done()
		runAdmin(ctx, *adminAddr, core, registry)
	}()

	go runCaptureStub(ctx, core, cfg.JPEGQualityOrDefault(), *codecWorkers)

	wg.Wait()
	log.Println("vrrop-server: shutdown complete")
}

func udpHostPort(port int) string {
	return ":" + strconv.Itoa(port)
}

func runAdmin(ctx context.Context, addr string, core *servercore.ServerCore, registry *sessiondb.Registry) {
	mux := http.NewServeMux()
	statsFunc := func() admin.Stats {
		return admin.Stats{
			ImageSubscribers:    core.ImageSubscriberCount(),
			OdometrySubscribers: core.OdometrySubscriberCount(),
			UDPClientCount:      core.UDPClientCount(),
		}
	}
	if err := admin.AttachRoutes(mux, registry, statsFunc); err != nil {
		log.Fatalf("vrrop-server: attaching admin routes: %v", err)
	}

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("vrrop-server: admin routes on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("vrrop-server: admin server error: %v", err)
	}
}

// runCaptureStub stands in for a real SLAM front end: it publishes a
// slowly rotating synthetic pose and a small solid-color frame at a
// fixed cadence, enough to exercise ServerCore's publish/throttle/encode
// path without any camera hardware.
func runCaptureStub(ctx context.Context, core *servercore.ServerCore, jpegQuality, codecWorkers int) {
	pool := codec.NewPool(codecWorkers)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	const width, height = 16, 12
	color := make([]byte, width*height*3)
	depth := make([]uint16, width*height)
	for i := range depth {
		depth[i] = 2000
	}

	var t float64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t += 0.1
			odom := wire.Odometry{
				StampUnixNanos: now.UnixNano(),
				Translation:    r3.Vec{X: math.Cos(t), Y: math.Sin(t), Z: 0},
				Rotation:       quat.Number{Real: math.Cos(t / 2), Kmag: math.Sin(t / 2)},
			}
			core.PublishOdometry(odom)

			msg := wire.ImagesMessage{
				Odometry: odom,
				Color: wire.ColorImage{
					Intrinsics: wire.CameraIntrinsics{Width: width, Height: height, Fx: 200, Fy: 200, Cx: width / 2, Cy: height / 2},
					Pixels:     color,
				},
				Depth: wire.DepthImage{
					Intrinsics: wire.CameraIntrinsics{Width: width, Height: height, Fx: 200, Fy: 200, Cx: width / 2, Cy: height / 2},
					Pixels:     depth,
				},
				DepthUnit: 0.001,
			}
			core.PublishRawImages(pool, msg, jpegQuality)
		}
	}
}
