// Command locate follows the configured GPS source in the terminal and prints one status
// line per tracker update.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"nearby/config"
	"nearby/internal/logger"
	"nearby/internal/provider"
	"nearby/internal/tracking"
	"nearby/pkg/location"
)

var (
	phaseStyle = map[tracking.Phase]lipgloss.Style{
		tracking.PhaseAcquiring: lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		tracking.PhaseTracking:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		tracking.PhaseDegraded:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		tracking.PhaseStopped:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	source := flag.String("source", cfg.GPS.Source, "gps source: nmea, mqtt or none")
	port := flag.String("port", cfg.GPS.SerialPort, "serial port for nmea")
	toLat := flag.Float64("to-lat", 0, "latitude of a point to measure distance to")
	toLng := flag.Float64("to-lng", 0, "longitude of a point to measure distance to")
	interval := flag.Duration("interval", cfg.Location.UpdateInterval, "forced refresh interval")
	flag.Parse()

	cfg.GPS.Source = *source
	cfg.GPS.SerialPort = *port
	cfg.Location.UpdateInterval = *interval

	zl, err := logger.New(cfg.Server.Env, "warn")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	src, err := provider.New(cfg.GPS, zl)
	if err != nil {
		log.Fatalf("gps source: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := src.Run(ctx); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("gps source: "+err.Error()))
			stop()
		}
	}()

	tracker := tracking.NewTracker(src.Location, cfg.Location.TrackingOptions(),
		tracking.WithPermissions(src.Permissions),
		tracking.WithLogger(zl),
	)
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()
	tracker.Start(ctx)

	var target *location.Point
	if *toLat != 0 || *toLng != 0 {
		if err := location.ValidateLatLng(*toLat, *toLng); err != nil {
			log.Fatalf("target: %v", err)
		}
		target = &location.Point{Lat: *toLat, Lng: *toLng}
	}

	for {
		select {
		case <-ctx.Done():
			tracker.Stop()
			fmt.Println(render(tracker.Snapshot(), target))
			return
		case snap := <-updates:
			fmt.Println(render(snap, target))
		}
	}
}

func render(s tracking.Snapshot, target *location.Point) string {
	style, ok := phaseStyle[s.Phase]
	if !ok {
		style = dimStyle
	}
	line := style.Render(fmt.Sprintf("%-9s", s.Phase))

	if s.Coords != nil {
		line += fmt.Sprintf(" %10.6f %11.6f", s.Coords.Latitude, s.Coords.Longitude)
		if s.Coords.Accuracy != nil {
			line += dimStyle.Render(fmt.Sprintf(" ±%.0fm", *s.Coords.Accuracy))
		}
		if target != nil {
			d := location.HaversineMiles(s.Coords.Latitude, s.Coords.Longitude, target.Lat, target.Lng)
			line += " " + location.FormatDistance(d)
		}
	} else {
		line += dimStyle.Render(" no fix")
	}
	if s.TimeSinceUpdate != nil {
		line += dimStyle.Render(fmt.Sprintf(" (%ds ago)", *s.TimeSinceUpdate))
	}
	if s.PermissionStatus != tracking.PermissionUnknown {
		line += dimStyle.Render(" permission=" + string(s.PermissionStatus))
	}
	if s.Error != "" {
		line += " " + errorStyle.Render(s.Error)
	}
	return line
}
