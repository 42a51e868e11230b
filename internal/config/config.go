package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	AuditStorePostgres = "postgres"
	AuditStoreLevelDB  = "leveldb"
	AuditStoreMemory   = "memory"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	StoreDriver      string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	AuditStore       string        `mapstructure:"AUDIT_STORE"`
	AuditLevelDBPath string        `mapstructure:"AUDIT_LEVELDB_PATH"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTTTL           time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit        string        `mapstructure:"BODY_LIMIT"`
	SeedDemoData     bool          `mapstructure:"SEED_DEMO_DATA"`
	TLSEnabled       bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile      string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile       string        `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUDIT_STORE", "") // follows STORE_DRIVER when empty
	v.SetDefault("AUDIT_LEVELDB_PATH", "./data/audit")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("SEED_DEMO_DATA", false)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"AUDIT_STORE", "AUDIT_LEVELDB_PATH", "JWT_SECRET", "JWT_TTL", "CORS_ORIGINS",
		"BODY_LIMIT", "SEED_DEMO_DATA", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.StoreDriver == StoreDriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StoreDriverPostgres)
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Requests without a bearer token are treated as admin.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuditStore returns the backend used for the audit chain. When
// AUDIT_STORE is not set the audit log lives next to the other records.
func (c *Config) ResolvedAuditStore() string {
	if c.AuditStore != "" {
		return c.AuditStore
	}
	if c.StoreDriver == StoreDriverMemory {
		return AuditStoreMemory
	}
	return AuditStorePostgres
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret of at least 32 bytes is required, and the audit chain may not
// be kept in process memory.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}

	switch audit := c.ResolvedAuditStore(); audit {
	case AuditStorePostgres:
		if c.StoreDriver != StoreDriverPostgres {
			return fmt.Errorf("AUDIT_STORE=%q requires STORE_DRIVER=%q", AuditStorePostgres, StoreDriverPostgres)
		}
	case AuditStoreLevelDB:
		if c.AuditLevelDBPath == "" {
			return fmt.Errorf("AUDIT_LEVELDB_PATH is required when AUDIT_STORE is %q", AuditStoreLevelDB)
		}
	case AuditStoreMemory:
		if c.IsProduction() {
			return fmt.Errorf("AUDIT_STORE=%q is not allowed in production", AuditStoreMemory)
		}
	default:
		return fmt.Errorf("AUDIT_STORE must be %q, %q or %q, got %q", AuditStorePostgres, AuditStoreLevelDB, AuditStoreMemory, audit)
	}

	if !c.IsDev() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
		}
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
