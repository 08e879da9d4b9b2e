package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/MangalKhundongbam/exe-semge/internal/extract"
	"github.com/MangalKhundongbam/exe-semge/internal/logger"
	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/internal/raster"
	"github.com/MangalKhundongbam/exe-semge/internal/store"
)

type Config struct {
	// Recognition Engine Configuration
	OCREngine       string
	TesseractPath   string
	TessdataPrefix  string
	TesseractPSM    int
	VisionLanguages []string

	// Rasterizer Configuration
	PdftoppmPath string
	RasterDPI    int

	// Pipeline Configuration
	PageWorkers      int
	PageTimeout      time.Duration
	HybridPrimary    string
	HybridSecondary  string
	CropPadding      int
	LanguageCacheTTL time.Duration

	// Classifier Configuration
	VocabularyFile string

	// Document Store Configuration
	StoreBackend string
	StorePath    string
	DatabaseURL  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OCREngine:       getEnv("OCR_ENGINE", "tesseract"),
		TesseractPath:   getEnv("TESSERACT_PATH", "tesseract"),
		TessdataPrefix:  getEnv("TESSDATA_PREFIX", ""),
		VisionLanguages: getEnvList("VISION_LANGUAGES", []string{"eng", "mni"}),
		PdftoppmPath:    getEnv("PDFTOPPM_PATH", "pdftoppm"),
		HybridPrimary:   getEnv("HYBRID_PRIMARY", "eng"),
		HybridSecondary: getEnv("HYBRID_SECONDARY", "mni"),
		VocabularyFile:  getEnv("VOCABULARY_FILE", ""),
		StoreBackend:    getEnv("STORE_BACKEND", "file"),
		StorePath:       getEnv("STORE_PATH", store.DefaultFilePath),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:   getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:       getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if config.TesseractPSM, err = getEnvInt("TESSERACT_PSM", 0); err != nil {
		return nil, err
	}
	if config.RasterDPI, err = getEnvInt("RASTER_DPI", raster.DefaultDPI); err != nil {
		return nil, err
	}
	if config.PageWorkers, err = getEnvInt("PAGE_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if config.CropPadding, err = getEnvInt("CROP_PADDING", extract.DefaultCropPadding); err != nil {
		return nil, err
	}
	if config.PageTimeout, err = getEnvDuration("PAGE_TIMEOUT", extract.DefaultPageTimeout); err != nil {
		return nil, err
	}
	if config.LanguageCacheTTL, err = getEnvDuration("LANGUAGE_CACHE_TTL", 0); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.OCREngine) {
	case "tesseract", "vision", "google-vision":
	default:
		return fmt.Errorf("OCR_ENGINE must be tesseract or vision, got %q", c.OCREngine)
	}
	if c.TesseractPSM < 0 || c.TesseractPSM > 13 {
		return fmt.Errorf("TESSERACT_PSM must be between 0 and 13")
	}
	if c.RasterDPI < 72 || c.RasterDPI > 1200 {
		return fmt.Errorf("RASTER_DPI must be between 72 and 1200")
	}
	if c.PageWorkers < 1 {
		return fmt.Errorf("PAGE_WORKERS must be at least 1")
	}
	if c.PageTimeout < 0 {
		return fmt.Errorf("PAGE_TIMEOUT must not be negative")
	}
	if c.CropPadding < 0 {
		return fmt.Errorf("CROP_PADDING must not be negative")
	}
	if c.HybridPrimary == "" || c.HybridSecondary == "" {
		return fmt.Errorf("HYBRID_PRIMARY and HYBRID_SECONDARY are required")
	}
	if c.HybridPrimary == c.HybridSecondary {
		return fmt.Errorf("HYBRID_PRIMARY and HYBRID_SECONDARY must differ")
	}
	switch strings.ToLower(c.StoreBackend) {
	case "file":
	case "postgres", "postgresql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be file or postgres, got %q", c.StoreBackend)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetEngineConfig returns the recognition engine configuration
func (c *Config) GetEngineConfig() ocr.EngineConfig {
	return ocr.EngineConfig{
		Kind: c.OCREngine,
		Tesseract: ocr.TesseractConfig{
			BinaryPath:     c.TesseractPath,
			TessdataPrefix: c.TessdataPrefix,
			PageSegMode:    c.TesseractPSM,
		},
		VisionLanguages: c.VisionLanguages,
	}
}

func (c *Config) GetRasterOptions() raster.Options {
	return raster.Options{PdftoppmPath: c.PdftoppmPath, DPI: c.RasterDPI}
}

func (c *Config) GetStoreConfig() store.Config {
	return store.Config{Backend: c.StoreBackend, Path: c.StorePath, DatabaseURL: c.DatabaseURL}
}

// GetPipelineOptions returns pipeline options, loading the vocabulary
// override file when one is configured.
func (c *Config) GetPipelineOptions() ([]extract.Option, error) {
	opts := []extract.Option{
		extract.WithWorkers(c.PageWorkers),
		extract.WithPageTimeout(c.PageTimeout),
		extract.WithHybridPair(c.HybridPrimary, c.HybridSecondary),
		extract.WithCropPadding(c.CropPadding),
	}
	if c.VocabularyFile != "" {
		v, err := extract.LoadVocabulary(c.VocabularyFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, extract.WithVocabulary(v))
	}
	return opts, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 90s or 5m: %w", key, err)
	}
	return d, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '+' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
