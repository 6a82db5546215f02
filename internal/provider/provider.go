// Package provider selects and runs the configured position source.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nearby/config"
	"nearby/internal/domain"
	"nearby/internal/provider/mqttgps"
	"nearby/internal/provider/nmea"
	"nearby/internal/tracking"
)

// Source bundles a location provider with its optional permission provider. A Source with
// a nil Location makes the tracker report Unsupported.
type Source struct {
	Location    tracking.LocationProvider
	Permissions tracking.PermissionProvider
	Name        string

	run func(ctx context.Context) error
}

func New(cfg config.GPSConfig, logger *zap.Logger) (*Source, error) {
	switch cfg.Source {
	case domain.GPSSourceNMEA:
		p := nmea.NewProvider(nmea.SerialConfig{
			Port:  cfg.SerialPort,
			Baud:  cfg.BaudRate,
			Retry: cfg.RetryInterval,
		}, logger)
		return &Source{
			Location:    p,
			Permissions: nmea.NewDevicePermission(cfg.SerialPort, cfg.PermissionPoll),
			Name:        cfg.Source,
			run:         p.Run,
		}, nil
	case domain.GPSSourceMQTT:
		sub := mqttgps.New(mqttgps.Config{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
		}, logger)
		return &Source{
			Location: sub,
			Name:     cfg.Source,
			run: func(ctx context.Context) error {
				if err := sub.Connect(); err != nil {
					sub.Close()
					return err
				}
				<-ctx.Done()
				sub.Close()
				return nil
			},
		}, nil
	case domain.GPSSourceNone, "":
		return &Source{Name: domain.GPSSourceNone}, nil
	default:
		return nil, fmt.Errorf("unknown gps source %q", cfg.Source)
	}
}

// Run drives the source until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	if s.run == nil {
		<-ctx.Done()
		return nil
	}
	return s.run(ctx)
}
