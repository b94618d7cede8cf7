// Command vrrop-viewer hosts ClientCore and a PointCloud, standing in
// for the out-of-scope renderer by printing the modified-cell count of
// every merge.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/vrrop/vrrop/internal/clientcore"
	"github.com/vrrop/vrrop/internal/pointcloud"
	"github.com/vrrop/vrrop/internal/version"
	"github.com/vrrop/vrrop/internal/wire"
)

var (
	serverAddr            = flag.String("server", "127.0.0.1:7878", "vrrop-server data-plane address (host:port)")
	gridSize              = flag.Float64("grid-size", 1.0, "PointCloud cubic cell side length, in meters")
	maxDepth              = flag.Float64("max-depth", 5.0, "maximum depth considered during a merge, in meters")
	staleRemovalThreshold = flag.Float64("stale-removal-threshold", 0.5, "stale-point eviction margin, in meters")
	versionFlag           = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("vrrop-viewer v%s (git SHA: %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	pc := pointcloud.New(float32(*gridSize))

	client := clientcore.New(*serverAddr,
		clientcore.WithOnImages(func(msg wire.ImagesMessage) {
			modified := pc.MergeImages(msg, float32(*maxDepth), float32(*staleRemovalThreshold))
			log.Printf("vrrop-viewer: merged frame, %d cells modified", len(modified))
		}),
		clientcore.WithOnOdometry(func(o wire.Odometry) {
			log.Printf("vrrop-viewer: odometry stamp=%d translation=%v", o.StampUnixNanos, o.Translation)
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client.Run(ctx)
	log.Println("vrrop-viewer: shutdown complete")
}
