// Package nmea reads NMEA 0183 sentences from a serial GPS receiver and publishes fixes
// into a feed.Feed.
package nmea

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"go.uber.org/zap"

	"nearby/internal/tracking"
)

// DefaultUERE is the user equivalent range error in metres used to turn HDOP into an
// accuracy radius.
const DefaultUERE = 5.0

// ErrNoFix is wrapped into the PositionUnavailable error published for a void RMC.
var ErrNoFix = errors.New("receiver has no fix")

// Sink receives parsed readings. *feed.Feed implements it.
type Sink interface {
	Publish(c tracking.Coordinates)
	Fail(err error)
}

// Reader converts RMC sentences to readings, using the HDOP of the latest GGA for
// accuracy. Other sentence types are ignored.
type Reader struct {
	sink   Sink
	logger *zap.Logger
	uere   float64

	hdop float64
}

func NewReader(sink Sink, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{sink: sink, logger: logger, uere: DefaultUERE}
}

// HandleLine parses one sentence. Blank lines and non-sentences are skipped silently;
// malformed sentences return the parse error.
func (r *Reader) HandleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return nil
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return fmt.Errorf("parse nmea: %w", err)
	}

	switch sentence.DataType() {
	case nmea.TypeGGA:
		gga := sentence.(nmea.GGA)
		if gga.FixQuality == nmea.Invalid {
			r.hdop = 0
		} else {
			r.hdop = gga.HDOP
		}
	case nmea.TypeRMC:
		rmc := sentence.(nmea.RMC)
		if rmc.Validity != nmea.ValidRMC {
			r.sink.Fail(tracking.NewPositionError(tracking.CodePositionUnavailable, ErrNoFix))
			return nil
		}
		c := tracking.Coordinates{
			Latitude:  rmc.Latitude,
			Longitude: rmc.Longitude,
			Timestamp: fixTime(rmc.Date, rmc.Time),
		}
		if r.hdop > 0 {
			acc := r.hdop * r.uere
			c.Accuracy = &acc
		}
		r.sink.Publish(c)
	}
	return nil
}

// Run reads sentences from src until it fails or ctx is done. Closing src is the
// caller's job; Run returns nil when ctx ended the read.
func (r *Reader) Run(ctx context.Context, src io.Reader) error {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.HandleLine(scanner.Text()); err != nil {
			r.logger.Debug("skipping sentence", zap.Error(err))
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read gps: %w", err)
	}
	return io.EOF
}

// fixTime returns the epoch ms of an RMC date and time, or 0 when either is missing.
func fixTime(d nmea.Date, t nmea.Time) int64 {
	if !d.Valid || !t.Valid {
		return 0
	}
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	ts := time.Date(year, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
	return ts.UnixMilli()
}
