package logging

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"
)

const datadogDialTimeout = 2 * time.Second

// datadogWriter ships JSON lines to a Datadog agent log listener. The
// connection is opened lazily and re-dialed after a write error, so an agent
// restart loses at most the record in flight.
type datadogWriter struct {
	mu      sync.Mutex
	network string
	addr    string
	conn    net.Conn
}

func newDatadogWriter(rawURL string) (*datadogWriter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing datadog url: %w", err)
	}
	switch u.Scheme {
	case "tcp", "udp":
	default:
		return nil, fmt.Errorf("datadog url %q: scheme must be tcp or udp", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("datadog url %q: missing host", rawURL)
	}
	return &datadogWriter{network: u.Scheme, addr: u.Host}, nil
}

func (w *datadogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		conn, err := net.DialTimeout(w.network, w.addr, datadogDialTimeout)
		if err != nil {
			return 0, fmt.Errorf("dialing datadog agent: %w", err)
		}
		w.conn = conn
	}

	n, err := w.conn.Write(p)
	if err != nil {
		_ = w.conn.Close()
		w.conn = nil
		return n, fmt.Errorf("writing to datadog agent: %w", err)
	}
	return n, nil
}

func (w *datadogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

func newDatadogHandler(w *datadogWriter, level slog.Level) slog.Handler {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.MessageKey:
				a.Key = "message"
			case slog.LevelKey:
				a.Key = "status"
			}
			return a
		},
	})
	return h.WithAttrs([]slog.Attr{
		slog.String("ddsource", "go"),
		slog.String("service", "prpilot"),
	})
}
