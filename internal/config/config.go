package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Capture     CaptureConfig     `yaml:"capture"`
	Encoder     EncoderConfig     `yaml:"encoder"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Population  PopulationConfig  `yaml:"population"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Database    DatabaseConfig    `yaml:"database"`
	Control     ControlConfig     `yaml:"control"`
	Log         LogConfig         `yaml:"log"`
}

type CaptureConfig struct {
	Source      string        `yaml:"source"`       // directory of frames or HTTP snapshot URL; comma-separated for several cameras
	CameraIndex int           `yaml:"camera_index"` // which entry of Source to open
	FrameWidth  int           `yaml:"frame_width"`
	FrameHeight int           `yaml:"frame_height"`
	Scale       float64       `yaml:"scale"`    // downscale factor applied before face detection
	Stride      int           `yaml:"stride"`   // process 1 of every Stride frames
	Loop        bool          `yaml:"loop"`     // restart directory sources when exhausted
	Interval    time.Duration `yaml:"interval"` // pause between frame reads, 0 reads as fast as possible
}

// SelectedSource returns the source locator picked by CameraIndex.
func (c *CaptureConfig) SelectedSource() (string, error) {
	var sources []string
	for _, s := range strings.Split(c.Source, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return "", errors.New("CAPTURE_SOURCE is empty")
	}
	if c.CameraIndex < 0 || c.CameraIndex >= len(sources) {
		return "", fmt.Errorf("CAMERA_INDEX %d out of range (%d sources configured)", c.CameraIndex, len(sources))
	}
	return sources[c.CameraIndex], nil
}

type EncoderConfig struct {
	URL            string `yaml:"url"`             // face encoder service base URL
	DetectionModel string `yaml:"detection_model"` // hog or cnn
	MinFaceSize    int    `yaml:"min_face_size"`   // minimum face width/height in registration images
}

type RecognitionConfig struct {
	Tolerance       float64       `yaml:"tolerance"`        // max Euclidean distance for a match
	ConfidenceFloor float64       `yaml:"confidence_floor"` // min confidence before cooldown is consulted
	Cooldown        time.Duration `yaml:"cooldown"`
	ANNIndex        bool          `yaml:"ann_index"`
}

type PopulationConfig struct {
	Backend string `yaml:"backend"` // file or postgres
	Path    string `yaml:"path"`
}

type AttendanceConfig struct {
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
	LogDir          string        `yaml:"log_dir"`
	SpoolPath       string        `yaml:"spool_path"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	StatsInterval   time.Duration `yaml:"stats_interval"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // postgres or mysql
	URL          string `yaml:"-"`      // connection URL / DSN
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type ControlConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"` // 0 disables the control server
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegInt is envInt that also accepts zero.
func envNonNegInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration parses values like "5m" or "30s". Non-positive values fall back to the default.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the configuration embedded in defaults.yaml without env overrides.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	d := Defaults()

	return &Config{
		Capture: CaptureConfig{
			Source:      envString("CAPTURE_SOURCE", d.Capture.Source),
			CameraIndex: envNonNegInt("CAMERA_INDEX", d.Capture.CameraIndex),
			FrameWidth:  envInt("FRAME_WIDTH", d.Capture.FrameWidth),
			FrameHeight: envInt("FRAME_HEIGHT", d.Capture.FrameHeight),
			Scale:       envFloat("CAPTURE_SCALE", d.Capture.Scale),
			Stride:      envInt("FRAME_STRIDE", d.Capture.Stride),
			Loop:        envBool("CAPTURE_LOOP", d.Capture.Loop),
			Interval:    envDuration("CAPTURE_INTERVAL", d.Capture.Interval),
		},
		Encoder: EncoderConfig{
			URL:            envString("ENCODER_URL", d.Encoder.URL),
			DetectionModel: envString("DETECTION_MODEL", d.Encoder.DetectionModel),
			MinFaceSize:    envInt("MIN_FACE_SIZE", d.Encoder.MinFaceSize),
		},
		Recognition: RecognitionConfig{
			Tolerance:       envFloat("MATCH_TOLERANCE", d.Recognition.Tolerance),
			ConfidenceFloor: envFloat("CONFIDENCE_FLOOR", d.Recognition.ConfidenceFloor),
			Cooldown:        envDuration("COOLDOWN_WINDOW", d.Recognition.Cooldown),
			ANNIndex:        envBool("MATCH_ANN_INDEX", d.Recognition.ANNIndex),
		},
		Population: PopulationConfig{
			Backend: envString("POPULATION_BACKEND", d.Population.Backend),
			Path:    envString("POPULATION_PATH", d.Population.Path),
		},
		Attendance: AttendanceConfig{
			DuplicateWindow: envDuration("DUPLICATE_WINDOW", d.Attendance.DuplicateWindow),
			LogDir:          envString("ATTENDANCE_LOG_DIR", d.Attendance.LogDir),
			SpoolPath:       envString("RETRY_SPOOL_PATH", d.Attendance.SpoolPath),
			RetryInterval:   envDuration("RETRY_INTERVAL", d.Attendance.RetryInterval),
			StatsInterval:   envDuration("STATS_INTERVAL", d.Attendance.StatsInterval),
		},
		Database: DatabaseConfig{
			Driver:       envString("DATABASE_DRIVER", d.Database.Driver),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Control: ControlConfig{
			Host: envString("CONTROL_HOST", d.Control.Host),
			Port: envNonNegInt("CONTROL_PORT", d.Control.Port),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", d.Log.Level),
			Format: envString("LOG_FORMAT", d.Log.Format),
		},
	}
}

// Validate checks the recognition and storage settings that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	var errs []error

	if c.Recognition.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_TOLERANCE must be positive, got %v", c.Recognition.Tolerance))
	}
	if c.Capture.Scale <= 0 || c.Capture.Scale > 1 {
		errs = append(errs, fmt.Errorf("CAPTURE_SCALE must be in (0, 1], got %v", c.Capture.Scale))
	}
	switch c.Encoder.DetectionModel {
	case "hog", "cnn":
	default:
		errs = append(errs, fmt.Errorf("DETECTION_MODEL must be hog or cnn, got %q", c.Encoder.DetectionModel))
	}
	switch c.Population.Backend {
	case "file":
		if c.Population.Path == "" {
			errs = append(errs, errors.New("POPULATION_PATH is required for the file backend"))
		}
	case "postgres":
		if c.Database.Driver != "postgres" {
			errs = append(errs, errors.New("POPULATION_BACKEND=postgres requires DATABASE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("POPULATION_BACKEND must be file or postgres, got %q", c.Population.Backend))
	}
	if err := c.Database.validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *DatabaseConfig) validate() error {
	switch c.Driver {
	case "postgres":
		return nil
	case "mysql":
		if c.URL == "" {
			return nil
		}
		if _, err := mysql.ParseDSN(c.URL); err != nil {
			return fmt.Errorf("invalid MySQL DSN in DATABASE_URL: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or mysql, got %q", c.Driver)
	}
}
