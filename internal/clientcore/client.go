// Package clientcore implements the viewer-side half of VRROP's streaming
// protocol: a single connect/reconnect loop that holds a WebSocket and a
// UDP socket to one robot, decodes incoming frames, and estimates the
// clock offset between the two hosts from Ping/Pong round trips.
package clientcore

import (
	"sync"
	"time"

	"github.com/vrrop/vrrop/internal/codec"
	"github.com/vrrop/vrrop/internal/timeutil"
	"github.com/vrrop/vrrop/internal/wire"
)

const (
	defaultPingInterval      = 100 * time.Millisecond
	defaultReconnectBackoff  = time.Second
	defaultClockOffsetAlpha  = 0.2
	outboundCommandQueueSize = 16
)

// Client holds the connect-loop state for one robot connection.
type Client struct {
	target string // host:port, shared by the WebSocket and UDP transports

	clock        timeutil.Clock
	codecPool    *codec.Pool
	pingInterval time.Duration
	backoff      time.Duration

	onImages   func(wire.ImagesMessage)
	onOdometry func(wire.Odometry)

	offset *clockOffset

	outbound chan wire.Command

	statsMu      sync.Mutex
	statsEnabled bool
	stats        wire.Stats
}

// Option configures a Client at construction.
type Option func(*Client)

// WithClock overrides the clock used for pinging and latency math. Tests
// use a MockClock.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithCodecPool overrides the bounded worker pool used to decode incoming
// image frames. Defaults to a single-worker pool.
func WithCodecPool(pool *codec.Pool) Option {
	return func(c *Client) { c.codecPool = pool }
}

// WithPingInterval overrides the UDP pinger's send interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// WithReconnectBackoff overrides the delay between connect attempts after
// a failure.
func WithReconnectBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithOnImages registers the callback invoked with every decoded
// ImagesMessage.
func WithOnImages(fn func(wire.ImagesMessage)) Option {
	return func(c *Client) { c.onImages = fn }
}

// WithOnOdometry registers the callback invoked with every decoded
// Odometry sample received over UDP.
func WithOnOdometry(fn func(wire.Odometry)) Option {
	return func(c *Client) { c.onOdometry = fn }
}

// WithClockOffsetSmoothing switches the clock offset estimator from
// last-writer-wins to an exponential moving average (alpha = 0.2) over
// successive Pong-derived samples.
func WithClockOffsetSmoothing(enabled bool) Option {
	return func(c *Client) { c.offset = newClockOffset(enabled, defaultClockOffsetAlpha) }
}

// New constructs a Client targeting addr ("host:port"), shared by the
// WebSocket and UDP transports.
func New(addr string, opts ...Option) *Client {
	c := &Client{
		target:       addr,
		clock:        timeutil.RealClock{},
		codecPool:    codec.NewPool(1),
		pingInterval: defaultPingInterval,
		backoff:      defaultReconnectBackoff,
		offset:       newClockOffset(false, defaultClockOffsetAlpha),
		outbound:     make(chan wire.Command, outboundCommandQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClockOffset returns the current estimate of (server clock - client
// clock).
func (c *Client) ClockOffset() time.Duration {
	return time.Duration(c.offset.load())
}

// SendCommand enqueues cmd for delivery over the WebSocket. It blocks if
// the outbound queue is full.
func (c *Client) SendCommand(cmd wire.Command) {
	c.outbound <- cmd
}

// StartRecording begins accumulating per-message stats, discarding
// anything accumulated by a previous recording session.
func (c *Client) StartRecording() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.statsEnabled = true
	c.stats = wire.Stats{}
}

// StopRecording ends the current recording session and flushes the
// accumulated stats to the server as a SaveStats command.
func (c *Client) StopRecording() {
	c.statsMu.Lock()
	stats := c.stats
	c.statsEnabled = false
	c.statsMu.Unlock()
	c.SendCommand(wire.Command{Kind: wire.CommandSaveStats, Stats: stats})
}

func (c *Client) latencyFor(stamp int64) int64 {
	return c.clock.Now().UnixNano() + c.offset.load() - stamp
}

func (c *Client) recordImageStats(stamp int64, size uint32, latency int64) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if !c.statsEnabled {
		return
	}
	c.stats.ImageStamps = append(c.stats.ImageStamps, stamp)
	c.stats.ImageSizes = append(c.stats.ImageSizes, size)
	c.stats.ImageLatencies = append(c.stats.ImageLatencies, latency)
}

func (c *Client) recordOdometryStats(stamp int64, size uint32, latency int64) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if !c.statsEnabled {
		return
	}
	c.stats.OdometryStamps = append(c.stats.OdometryStamps, stamp)
	c.stats.OdometrySizes = append(c.stats.OdometrySizes, size)
	c.stats.OdometryLatencies = append(c.stats.OdometryLatencies, latency)
}
