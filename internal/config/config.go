package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// placeholderHash is the reference CID shipped with the catalog seed
// data. Deployments override the per-category hashes.
const placeholderHash = "QmWATWQ7fVPP2EFGu71UkfnqhYXDYH566qy47CnJDgvs8u"

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver string
		Path   string
	}
	Auth struct {
		JWTSecret        string
		RegisterPassword string
		TokenTTLMinutes  int
	}
	Cooldown struct {
		// Period and LockPeriod are seconds; the lock period must be
		// the longer of the two.
		Period     int64
		LockPeriod int64
	}
	Catalog struct {
		ResidentialHash string
		CommercialHash  string
		LuxuryHash      string
	}
	History struct {
		MaxPreviousOwners int
		Policy            string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("PROPREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/registry.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.registerpassword", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("cooldown.period", 300)
	v.SetDefault("cooldown.lockperiod", 600)
	v.SetDefault("catalog.residentialhash", placeholderHash)
	v.SetDefault("catalog.commercialhash", placeholderHash)
	v.SetDefault("catalog.luxuryhash", placeholderHash)
	v.SetDefault("history.maxpreviousowners", 10)
	v.SetDefault("history.policy", "drop-oldest")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "property-metadata")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Cooldown.LockPeriod <= cfg.Cooldown.Period {
		return Config{}, fmt.Errorf("cooldown lock period (%d) must exceed the cooldown period (%d)", cfg.Cooldown.LockPeriod, cfg.Cooldown.Period)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
