//go:build pcap
// +build pcap

// Command vrrop-pcapreplay replays a captured UDP datagram-plane pcap
// against a live ServerCore (or ClientCore) for load testing,
// independent of a real robot. Inter-packet timing is taken from the
// capture's own timestamps and scaled by -speed.
//
// Usage:
//
//	vrrop-pcapreplay -pcap=capture.pcap -port=7878 -target=127.0.0.1:7878 -speed=1.0
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

var (
	pcapFile = flag.String("pcap", "", "path to a pcap capture of the data-plane UDP traffic")
	udpPort  = flag.Int("port", 7878, "UDP port the capture's datagrams were sent to")
	target   = flag.String("target", "127.0.0.1:7878", "host:port to replay datagrams against")
	speed    = flag.Float64("speed", 1.0, "inter-packet delay scale (2.0 replays at half speed)")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("vrrop-pcapreplay: -pcap is required")
	}

	if err := replay(*pcapFile, *udpPort, *target, *speed); err != nil {
		log.Fatalf("vrrop-pcapreplay: %v", err)
	}
}

func replay(pcapPath string, port int, target string, speed float64) error {
	handle, err := pcap.OpenOffline(pcapPath)
	if err != nil {
		return fmt.Errorf("opening pcap %s: %w", pcapPath, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", port)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("setting BPF filter %q: %w", filter, err)
	}

	targetAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return fmt.Errorf("resolving target %s: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, targetAddr)
	if err != nil {
		return fmt.Errorf("dialing target %s: %w", target, err)
	}
	defer conn.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	var lastCaptureTime time.Time

	for packet := range source.Packets() {
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}

		captureTime := packet.Metadata().Timestamp
		if !lastCaptureTime.IsZero() {
			gap := captureTime.Sub(lastCaptureTime)
			if gap > 0 {
				time.Sleep(time.Duration(float64(gap) * speed))
			}
		}
		lastCaptureTime = captureTime

		if _, err := conn.Write(udp.Payload); err != nil {
			return fmt.Errorf("writing packet %d: %w", packetCount, err)
		}
		packetCount++

		if packetCount%1000 == 0 {
			log.Printf("vrrop-pcapreplay: replayed %d packets", packetCount)
		}
	}

	log.Printf("vrrop-pcapreplay: replay complete, %d packets sent to %s", packetCount, target)
	return nil
}
