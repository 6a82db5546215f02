package nmea

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"nearby/internal/provider/feed"
	"nearby/internal/tracking"
)

type SerialConfig struct {
	Port  string
	Baud  uint
	Retry time.Duration
}

// OpenSerial opens the receiver's port 8N1. Open failures come back as PositionErrors:
// permission problems as PermissionDenied, everything else as PositionUnavailable.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        cfg.Port,
		BaudRate:        cfg.Baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, classifyOpenError(err)
	}
	return port, nil
}

func classifyOpenError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return tracking.NewPositionError(tracking.CodePermissionDenied, err)
	}
	return tracking.NewPositionError(tracking.CodePositionUnavailable, err)
}

// Provider is a LocationProvider backed by a serial GPS receiver. Run owns the port and
// reopens it after failures; the embedded Feed serves the tracker.
type Provider struct {
	*feed.Feed
	cfg    SerialConfig
	logger *zap.Logger
	open   func(SerialConfig) (io.ReadWriteCloser, error)
}

func NewProvider(cfg SerialConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 5 * time.Second
	}
	return &Provider{
		Feed:   feed.New(feed.WithLogger(logger)),
		cfg:    cfg,
		logger: logger.With(zap.String("port", cfg.Port)),
		open:   OpenSerial,
	}
}

// Run reads the receiver until ctx is done, then closes the feed.
func (p *Provider) Run(ctx context.Context) error {
	defer p.Feed.Close()
	reader := NewReader(p.Feed, p.logger)
	for {
		port, err := p.open(p.cfg)
		if err != nil {
			p.logger.Warn("gps port unavailable", zap.Error(err))
			p.Feed.Fail(err)
		} else {
			p.logger.Info("gps port opened", zap.Uint("baud", p.cfg.Baud))
			stop := context.AfterFunc(ctx, func() { port.Close() })
			err = reader.Run(ctx, port)
			if stop() {
				port.Close()
			}
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("gps read stopped", zap.Error(err))
			p.Feed.Fail(tracking.NewPositionError(tracking.CodePositionUnavailable, err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.cfg.Retry):
		}
	}
}
