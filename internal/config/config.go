package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string        // API bind address, e.g., "127.0.0.1:8080" or ":8080" (Docker)
	LogDir         string        // system.log, feedback_log.json and the operational log
	LogLevel       string        // zap level name
	LogConsole     bool          // tee operational logs to stderr
	ConfigFile     string        // non-secret target parameters (JSON)
	SecretsFile    string        // credentials (JSON)
	CheckTimeout   time.Duration // per-target bound
	MaxConcurrent  int           // probes in flight per round
	KnownHostsFile string        // optional known_hosts for the remote-shell probe

	PublicAPIKeys  []string
	AdminAPIKeys   []string
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
	AllowedOrigins []string
}

// LoadDotEnv loads the given env files (default .env and .env.local) when
// they exist. Variables already present in the process environment win.
// It returns the files that were loaded.
func LoadDotEnv(files ...string) []string {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	loaded := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			continue
		}
		loaded = append(loaded, f)
	}
	return loaded
}

func FromEnv() Config {
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = os.Getenv("ADDR")
	}
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	return Config{
		Addr:           addr,
		LogDir:         getEnv("LOG_DIR", "logs"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogConsole:     getBool("LOG_CONSOLE", false),
		ConfigFile:     getEnv("CONFIG_FILE", "config.json"),
		SecretsFile:    getEnv("SECRETS_FILE", "secrets.json"),
		CheckTimeout:   getMillis("CHECK_TIMEOUT_MS", 5*time.Second),
		MaxConcurrent:  getPositiveInt("MAX_CONCURRENT_CHECKS", 4),
		KnownHostsFile: os.Getenv("SSH_KNOWN_HOSTS"),

		PublicAPIKeys:  splitList(os.Getenv("PUBLIC_API_KEYS")),
		AdminAPIKeys:   splitList(os.Getenv("ADMIN_API_KEYS")),
		PublicRPM:      getNonNegativeInt("PUBLIC_RPM", 120),
		PublicBurst:    getPositiveInt("PUBLIC_BURST", 60),
		AdminRPM:       getNonNegativeInt("ADMIN_RPM", 30),
		AdminBurst:     getPositiveInt("ADMIN_BURST", 10),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getPositiveInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getNonNegativeInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

// splitList parses "a,b, c" into ["a" "b" "c"], dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
