package config

import (
	"os"
	"strconv"
	"time"

	"nearby/internal/tracking"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Location  LocationConfig
	GPS       GPSConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// LocationConfig holds the tracker options and the nearby search defaults.
type LocationConfig struct {
	HighAccuracy   bool
	MaxAge         time.Duration
	Timeout        time.Duration
	UpdateInterval time.Duration

	Directory         string // mysql or redis
	NearbyRadiusMiles float64
	SpreadDeg         float64
	MapWidth          float64
	MapHeight         float64
}

func (l LocationConfig) TrackingOptions() tracking.Options {
	return tracking.Options{
		HighAccuracy:   l.HighAccuracy,
		MaxAge:         l.MaxAge,
		Timeout:        l.Timeout,
		UpdateInterval: l.UpdateInterval,
	}
}

// GPSConfig selects the position source: "nmea" (serial receiver), "mqtt" (producer topic)
// or "none".
type GPSConfig struct {
	Source         string
	SerialPort     string
	BaudRate       uint
	RetryInterval  time.Duration
	PermissionPoll time.Duration
	MQTTBroker     string
	MQTTTopic      string
	MQTTClientID   string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type LogConfig struct {
	Level string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8099"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getenv("DB_DSN", "nearby:nearby@tcp(localhost:3306)/nearby?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			AccessSecret: getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getenvDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:       getenv("JWT_ISSUER", "nearby"),
		},
		Location: LocationConfig{
			HighAccuracy:      getenvBool("TRACK_HIGH_ACCURACY", true),
			MaxAge:            getenvDuration("TRACK_MAX_AGE", 10*time.Second),
			Timeout:           getenvDuration("TRACK_TIMEOUT", 15*time.Second),
			UpdateInterval:    getenvDuration("TRACK_UPDATE_INTERVAL", 10*time.Second),
			Directory:         getenv("DIRECTORY", "mysql"),
			NearbyRadiusMiles: getenvFloat("NEARBY_RADIUS_MILES", 5),
			SpreadDeg:         getenvFloat("NEARBY_SPREAD_DEG", 0.05),
			MapWidth:          800,
			MapHeight:         600,
		},
		GPS: GPSConfig{
			Source:         getenv("GPS_SOURCE", "nmea"),
			SerialPort:     getenv("GPS_SERIAL_PORT", "/dev/serial0"),
			BaudRate:       uint(getenvInt("GPS_BAUD", 9600)),
			RetryInterval:  getenvDuration("GPS_RETRY", 5*time.Second),
			PermissionPoll: getenvDuration("GPS_PERMISSION_POLL", 2*time.Second),
			MQTTBroker:     getenv("MQTT_BROKER", "tcp://localhost:1883"),
			MQTTTopic:      getenv("MQTT_GPS_TOPIC", "inertial/gps"),
			MQTTClientID:   getenv("MQTT_CLIENT_ID", "nearby-tracker"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getenvFloat("RATE_LIMIT_RPS", 10),
			Burst:             getenvInt("RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
