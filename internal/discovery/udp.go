package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// listenerBurst bounds how many announcements UDPListener will process back
// to back before its rate limit kicks in; a burst just above a full-subnet
// fan-in avoids dropping a legitimate startup thundering-herd of announcers.
const listenerBurst = 50

// UDPAnnouncer periodically broadcasts this hub's presence on BroadcastPort,
// per §6's recommended discovery protocol. It is a thin wrapper: it knows
// nothing about hub.Hub beyond the Peer record it's told to advertise.
type UDPAnnouncer struct {
	self     Peer
	interval time.Duration
	logger   *slog.Logger
}

// NewUDPAnnouncer builds an announcer for self, broadcasting every interval.
func NewUDPAnnouncer(self Peer, interval time.Duration, logger *slog.Logger) *UDPAnnouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &UDPAnnouncer{self: self, interval: interval, logger: logger}
}

// Run broadcasts self's announcement every interval until ctx is cancelled.
func (a *UDPAnnouncer) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("255.255.255.255:%d", BroadcastPort))
	if err != nil {
		return fmt.Errorf("discovery: resolve broadcast address: %w", err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("discovery: dial broadcast socket: %w", err)
	}
	defer conn.Close()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if _, err := conn.Write([]byte(EncodeAnnouncement(a.self))); err != nil {
			a.logger.Warn("discovery: broadcast failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// UDPListener listens for peer announcements on BroadcastPort, rate-limiting
// how fast it hands decoded peers to onPeer so a misbehaving or malicious
// announcer can't turn discovery into a CPU sink for callers that attach
// hubs on every announcement.
type UDPListener struct {
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewUDPListener builds a listener that accepts up to ratePerSecond
// announcements per second, after an initial burst. A zero or negative
// ratePerSecond defaults to 20/s.
func NewUDPListener(logger *slog.Logger, ratePerSecond float64) *UDPListener {
	if logger == nil {
		logger = slog.Default()
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 20
	}
	return &UDPListener{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), listenerBurst),
	}
}

// Run listens until ctx is cancelled, invoking onPeer for every
// successfully decoded announcement. Malformed packets are logged and
// skipped, never fatal.
func (l *UDPListener) Run(ctx context.Context, onPeer func(Peer)) error {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf(":%d", BroadcastPort))
	if err != nil {
		return fmt.Errorf("discovery: resolve listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("discovery: listen: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 512)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("discovery: read: %w", err)
		}
		if !l.limiter.Allow() {
			l.logger.Debug("discovery: dropped announcement, rate limit exceeded")
			continue
		}

		peer, err := DecodeAnnouncement(string(buf[:n]))
		if err != nil {
			l.logger.Debug("discovery: dropped malformed announcement", "error", err)
			continue
		}
		onPeer(peer)
	}
}
