// Package mqttgps follows a GPS producer that publishes JSON fixes on an MQTT topic.
package mqttgps

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"nearby/internal/provider/feed"
	"nearby/internal/tracking"
)

// ErrVoidFix is wrapped into the PositionUnavailable error published for a fix whose
// validity is not "A".
var ErrVoidFix = errors.New("producer reported a void fix")

// Fix is the producer's payload.
type Fix struct {
	Time       string   `json:"time"`
	Date       string   `json:"date"`
	Latitude   float64  `json:"lat"`
	Longitude  float64  `json:"lon"`
	SpeedKnots float64  `json:"speed_knots"`
	CourseDeg  float64  `json:"course_deg"`
	Validity   string   `json:"validity"`
	AccuracyM  *float64 `json:"accuracy_m,omitempty"`
}

type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
}

// Subscriber is a LocationProvider fed by MQTT messages.
type Subscriber struct {
	*feed.Feed
	cfg    Config
	logger *zap.Logger
	client mqtt.Client
}

func New(cfg Config, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		Feed:   feed.New(feed.WithLogger(logger)),
		cfg:    cfg,
		logger: logger.With(zap.String("topic", cfg.Topic)),
	}
}

// Connect dials the broker and subscribes to the fix topic. A lost connection is reported
// as PositionUnavailable; paho reconnects and resubscribes on its own.
func (s *Subscriber) Connect() error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn("mqtt connection lost", zap.Error(err))
			s.Feed.Fail(tracking.NewPositionError(tracking.CodePositionUnavailable, err))
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
				s.handle(msg.Payload())
			})
			if token.Wait() && token.Error() != nil {
				s.logger.Error("mqtt subscribe failed", zap.Error(token.Error()))
			}
		})

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect mqtt %s: %w", s.cfg.Broker, token.Error())
	}
	s.logger.Info("mqtt gps subscriber connected", zap.String("broker", s.cfg.Broker))
	return nil
}

// Close unsubscribes, disconnects and closes the feed.
func (s *Subscriber) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Unsubscribe(s.cfg.Topic).Wait()
		s.client.Disconnect(250)
	}
	s.Feed.Close()
}

func (s *Subscriber) handle(payload []byte) {
	var fix Fix
	if err := json.Unmarshal(payload, &fix); err != nil {
		s.logger.Debug("bad gps payload", zap.Error(err))
		return
	}
	if fix.Validity != "A" {
		s.Feed.Fail(tracking.NewPositionError(tracking.CodePositionUnavailable, ErrVoidFix))
		return
	}
	s.Feed.Publish(tracking.Coordinates{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.AccuracyM,
		Timestamp: fix.timestamp(),
	})
}

var layouts = []string{
	"2006-01-02 15:04:05",
	"02/01/06 15:04:05.0000",
	"02/01/06 15:04:05",
}

// timestamp parses Date and Time in the formats producers emit; 0 when unparseable.
func (f Fix) timestamp() int64 {
	if f.Date == "" || f.Time == "" {
		return 0
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, f.Date+" "+f.Time); err == nil {
			return ts.UnixMilli()
		}
	}
	return 0
}
