package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type HTTPOptions struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	MaxUploadBytes int64    `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"67108864"` // 64MB
}

type DatabaseOptions struct {
	Driver   string `env:"STORE_DRIVER" envDefault:"postgres"` // postgres or memory
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"company_directory"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

func (d DatabaseOptions) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

// ImportOptions tunes the company ingestion pipeline.
type ImportOptions struct {
	BatchSize         int           `env:"IMPORT_BATCH_SIZE" envDefault:"100"`
	MaxRows           int           `env:"IMPORT_MAX_ROWS" envDefault:"100000"`
	ErrorPreviewLimit int           `env:"IMPORT_ERROR_PREVIEW_LIMIT" envDefault:"5"`
	RowPreviewLimit   int           `env:"IMPORT_ROW_PREVIEW_LIMIT" envDefault:"5"`
	CommitRetries     int           `env:"IMPORT_COMMIT_RETRIES" envDefault:"0"`
	KeyLookupChunk    int           `env:"IMPORT_KEY_LOOKUP_CHUNK" envDefault:"1000"`
	ResetDelay        time.Duration `env:"IMPORT_RESET_DELAY" envDefault:"3s"` // how long a client shows a finished upload
}

func (o ImportOptions) Validate() error {
	if o.BatchSize <= 0 {
		return errors.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", o.BatchSize)
	}
	if o.MaxRows <= 0 {
		return errors.Errorf("IMPORT_MAX_ROWS must be positive, got %d", o.MaxRows)
	}
	if o.ErrorPreviewLimit < 0 || o.RowPreviewLimit < 0 {
		return errors.New("import preview limits must be non-negative")
	}
	if o.CommitRetries < 0 {
		return errors.Errorf("IMPORT_COMMIT_RETRIES must be non-negative, got %d", o.CommitRetries)
	}
	if o.KeyLookupChunk <= 0 {
		return errors.Errorf("IMPORT_KEY_LOOKUP_CHUNK must be positive, got %d", o.KeyLookupChunk)
	}
	if o.ResetDelay < 0 {
		return errors.Errorf("IMPORT_RESET_DELAY must be non-negative, got %s", o.ResetDelay)
	}
	return nil
}

// LoadImport reads only the import options, for tools that need no server config.
func LoadImport() (ImportOptions, error) {
	opts, err := env.ParseAs[ImportOptions]()
	if err != nil {
		return ImportOptions{}, errors.Wrap(err, "parse environment")
	}
	return opts, opts.Validate()
}

type LogOptions struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // text or json
}

type Config struct {
	HTTP     HTTPOptions
	Database DatabaseOptions
	Import   ImportOptions
	Log      LogOptions
}

// LoadEnv loads the env files that exist, in order. Missing files are not an error.
func LoadEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := cfg.Import.Validate(); err != nil {
		return nil, err
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "memory" {
		return nil, errors.Errorf("STORE_DRIVER must be postgres or memory, got %q", cfg.Database.Driver)
	}
	return cfg, nil
}
