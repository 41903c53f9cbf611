// Package config parses the settings of the canvass binaries from
// command line flags, falling back to environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/janneta/canvass/docstore"
	"github.com/joho/godotenv"
)

// EnvFile is the dotenv file the binaries read at startup.
const EnvFile = ".env"

const (
	defaultPort      = 8080
	defaultCachePath = "canvass.db"
	defaultMongoDB   = "canvass"
	defaultBucket    = "receipts"
	defaultAdapter   = "hci0"
)

// Store selects the remote document store and the local cache file.
type Store struct {
	Driver    string
	ProjectID string
	MongoURL  string
	MongoDB   string
	CachePath string
}

// StoreFlags registers the store flags on fs.
func StoreFlags(fs *flag.FlagSet) *Store {
	s := &Store{}
	fs.StringVar(&s.Driver, "store", "", "Remote store driver: memory, datastore or mongo (STORE_DRIVER)")
	fs.StringVar(&s.ProjectID, "project", "", "Google Cloud project of the datastore (DATASTORE_PROJECT_ID)")
	fs.StringVar(&s.MongoURL, "mongo-url", "", "MongoDB connection string (MONGO_URL)")
	fs.StringVar(&s.MongoDB, "mongo-db", "", "MongoDB database name (MONGO_DB)")
	fs.StringVar(&s.CachePath, "cache", "", "Local cache database file (CACHE_PATH)")
	return s
}

// Resolve fills unset fields from the environment and validates them.
func (s *Store) Resolve() error {
	fromEnv(&s.Driver, "STORE_DRIVER", "memory")
	fromEnv(&s.ProjectID, "DATASTORE_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT"))
	fromEnv(&s.MongoURL, "MONGO_URL", "")
	fromEnv(&s.MongoDB, "MONGO_DB", defaultMongoDB)
	fromEnv(&s.CachePath, "CACHE_PATH", defaultCachePath)
	switch s.Driver {
	case "memory":
	case "datastore":
		if s.ProjectID == "" {
			return errors.New("datastore project required (use -project or DATASTORE_PROJECT_ID env)")
		}
	case "mongo":
		if s.MongoURL == "" {
			return errors.New("mongo url required (use -mongo-url or MONGO_URL env)")
		}
	default:
		return fmt.Errorf("invalid store driver %q", s.Driver)
	}
	return nil
}

// Options returns the docstore options of s.
func (s Store) Options() docstore.Options {
	return docstore.Options{
		Driver:    s.Driver,
		ProjectID: s.ProjectID,
		MongoURL:  s.MongoURL,
		MongoDB:   s.MongoDB,
	}
}

// Storage selects where shared receipt images are uploaded.
type Storage struct {
	Driver           string
	Bucket           string
	PublicURL        string
	S3Region         string
	AccessKeyID      string
	SecretAccessKey  string
	DriveCredentials string
	DriveToken       string
}

// Printer locates the Bluetooth printer.
type Printer struct {
	Adapter string
	Address string
}

// Config holds the settings of the campaign service.
type Config struct {
	UserName      string
	Password      string
	Port          int
	BrowserURL    string
	CandidateFile string
	TranslateURL  string
	Store         Store
	Storage       Storage
	Printer       Printer
}

// Parse reads the service settings from args and the environment.
// Flags take precedence over environment variables.
func Parse(args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("canvass", flag.ContinueOnError)
	store := StoreFlags(fs)

	fs.StringVar(&cfg.UserName, "user", "", "Basic auth user name (USER_NAME)")
	fs.StringVar(&cfg.Password, "password", "", "Basic auth password, prefer env (PASSWORD)")
	fs.IntVar(&cfg.Port, "port", 0, "Server port (SERVER_PORT)")
	fs.StringVar(&cfg.BrowserURL, "browser", "", "DevTools URL of the browser rendering receipts, empty to launch one (BROWSER_URL)")
	fs.StringVar(&cfg.CandidateFile, "candidate", "", "YAML file with the candidate branding (CANDIDATE_FILE)")
	fs.StringVar(&cfg.TranslateURL, "translate-url", "", "Translate endpoint (TRANSLATE_URL)")

	fs.StringVar(&cfg.Storage.Driver, "storage", "", "Receipt storage: local, gcs, s3 or drive (STORAGE_DRIVER)")
	fs.StringVar(&cfg.Storage.Bucket, "bucket", "", "Bucket, directory or drive folder id for receipts (RECEIPTS_BUCKET)")
	fs.StringVar(&cfg.Storage.PublicURL, "public-url", "", "Public URL receipts stored locally are served from (PUBLIC_URL)")
	fs.StringVar(&cfg.Storage.S3Region, "s3-region", "", "S3 region (S3_REGION)")
	fs.StringVar(&cfg.Storage.DriveCredentials, "drive-credentials", "", "Google Drive credentials file (DRIVE_CREDENTIALS_FILE)")
	fs.StringVar(&cfg.Storage.DriveToken, "drive-token", "", "Google Drive OAuth token file (DRIVE_TOKEN_FILE)")

	fs.StringVar(&cfg.Printer.Adapter, "adapter", "", "Bluetooth adapter (PRINTER_ADAPTER)")
	fs.StringVar(&cfg.Printer.Address, "printer", "", "Printer Bluetooth address (PRINTER_ADDRESS)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	fromEnv(&cfg.UserName, "USER_NAME", "")
	if cfg.UserName == "" {
		return Config{}, errors.New("missing USER_NAME environment variable")
	}
	fromEnv(&cfg.Password, "PASSWORD", "")
	if cfg.Password == "" {
		return Config{}, errors.New("missing PASSWORD environment variable")
	}
	if cfg.Port == 0 {
		if portStr := os.Getenv("SERVER_PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid SERVER_PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = defaultPort
		}
	}
	fromEnv(&cfg.BrowserURL, "BROWSER_URL", "")
	fromEnv(&cfg.CandidateFile, "CANDIDATE_FILE", "")
	fromEnv(&cfg.TranslateURL, "TRANSLATE_URL", "")

	if err := store.Resolve(); err != nil {
		return Config{}, err
	}
	cfg.Store = *store

	if err := cfg.Storage.resolve(); err != nil {
		return Config{}, err
	}

	fromEnv(&cfg.Printer.Adapter, "PRINTER_ADAPTER", defaultAdapter)
	fromEnv(&cfg.Printer.Address, "PRINTER_ADDRESS", "")
	return cfg, nil
}

func (s *Storage) resolve() error {
	fromEnv(&s.Driver, "STORAGE_DRIVER", "local")
	fromEnv(&s.Bucket, "RECEIPTS_BUCKET", defaultBucket)
	fromEnv(&s.PublicURL, "PUBLIC_URL", "")
	fromEnv(&s.S3Region, "S3_REGION", "")
	fromEnv(&s.DriveCredentials, "DRIVE_CREDENTIALS_FILE", "")
	fromEnv(&s.DriveToken, "DRIVE_TOKEN_FILE", "")
	// access keys are secrets and only read from the environment
	s.AccessKeyID = os.Getenv("ACCESS_KEY_ID")
	s.SecretAccessKey = os.Getenv("SECRET_ACCESS_KEY")
	switch s.Driver {
	case "local", "gcs":
	case "s3":
		if s.AccessKeyID == "" || s.SecretAccessKey == "" {
			return errors.New("missing ACCESS_KEY_ID or SECRET_ACCESS_KEY environment variable")
		}
	case "drive":
		if s.DriveCredentials == "" || s.DriveToken == "" {
			return errors.New("drive storage requires -drive-credentials and -drive-token")
		}
	default:
		return fmt.Errorf("invalid storage driver %q", s.Driver)
	}
	return nil
}

// LoadEnvFile exports the variables of the dotenv file at path that
// are not set yet. A missing file is ignored.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s, error %v", path, err)
	}
	return nil
}

// fromEnv sets *v from the environment variable key when it is empty,
// and to def when both are empty.
func fromEnv(v *string, key, def string) {
	if *v != "" {
		return
	}
	if *v = os.Getenv(key); *v == "" {
		*v = def
	}
}
