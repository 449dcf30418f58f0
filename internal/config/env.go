package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"

	"github.com/akarpov/svsim/internal/common"
)

// Config contains all configuration parameters for the application.
// Note: the vault password is prompted at runtime and stored in memory -
// use GetVaultPasswordBytes()
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"file"` // "file", "bolt" or "mem"
	StorageDir     string `envconfig:"STORAGE_DIR" default:"./svsim-data"`

	Network            string        `envconfig:"NETWORK" default:"devnet"`
	AutoLockTimeout    time.Duration `envconfig:"AUTO_LOCK_TIMEOUT" default:"5m"`
	ConfirmationDelay  time.Duration `envconfig:"CONFIRMATION_DELAY" default:"2s"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"10m"`

	ApprovalDelay          time.Duration `envconfig:"APPROVAL_DELAY" default:"3s"`
	BaseRejectionRate      float64       `envconfig:"BASE_REJECTION_RATE" default:"0.05"`
	RiskWeight             float64       `envconfig:"RISK_WEIGHT" default:"0.3"`
	ApproveAll             bool          `envconfig:"APPROVE_ALL" default:"false"`
	AutoApproveMaxLamports uint64        `envconfig:"AUTO_APPROVE_MAX_LAMPORTS" default:"1000000"`
	HighValueLamports      uint64        `envconfig:"HIGH_VALUE_LAMPORTS" default:"1000000000"`

	// SOL-denominated overrides for the thresholds above. When set they
	// take precedence over the lamport values.
	AutoApproveMaxSOL string `envconfig:"AUTO_APPROVE_MAX_SOL" default:""`
	HighValueSOL      string `envconfig:"HIGH_VALUE_SOL" default:""`

	RetentionAge           time.Duration `envconfig:"RETENTION_AGE" default:"24h"`
	RetentionMaxEntries    int           `envconfig:"RETENTION_MAX_ENTRIES" default:"1000"`
	RetentionSweepInterval time.Duration `envconfig:"RETENTION_SWEEP_INTERVAL" default:"1m"`

	// RandSeed makes the approval simulator deterministic; 0 seeds from
	// the clock.
	RandSeed int64 `envconfig:"RAND_SEED" default:"0"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	cfg = &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.AutoApproveMaxSOL != "" {
		lamports, err := common.SOLToLamports(cfg.AutoApproveMaxSOL)
		if err != nil {
			return fmt.Errorf("invalid AUTO_APPROVE_MAX_SOL: %w", err)
		}
		cfg.AutoApproveMaxLamports = lamports
	}
	if cfg.HighValueSOL != "" {
		lamports, err := common.SOLToLamports(cfg.HighValueSOL)
		if err != nil {
			return fmt.Errorf("invalid HIGH_VALUE_SOL: %w", err)
		}
		cfg.HighValueLamports = lamports
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetLogLevel returns the log level from configuration
func GetLogLevel() string {
	return Get().LogLevel
}

var passwordBytes []byte

// PromptForPassword prompts the user for the vault password in the terminal.
// The password is read without echoing (hidden input) and stored in memory.
// Call this at startup before the server begins handling requests.
func PromptForPassword() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter password")
	}
	fmt.Fprint(os.Stderr, "Enter vault password: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("password cannot be empty")
	}

	passwordBytes = make([]byte, len(raw))
	copy(passwordBytes, raw)
	clear(raw)
	return nil
}

// GetVaultPasswordBytes returns the password stored in memory (from PromptForPassword).
// Returns an error if the password was not set.
// Caller must zero the returned slice after use for security.
func GetVaultPasswordBytes() ([]byte, error) {
	if len(passwordBytes) == 0 {
		return nil, errors.New("password not set: call PromptForPassword at startup")
	}
	out := make([]byte, len(passwordBytes))
	copy(out, passwordBytes)
	return out, nil
}
