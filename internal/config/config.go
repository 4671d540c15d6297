package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration-valued settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in the
// application: strings for identifiers and secrets, ints for costs,
// durations for the session timing knobs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password and PIN hashing

	// PIN session timing.  These are deliberately configuration rather than
	// constants so tests and staging can shrink them.
	PinSessionTTL    time.Duration // absolute PIN session lifetime (a work shift)
	PinWarnThreshold time.Duration // remaining time at which the expiry warning fires
	PinCheckInterval time.Duration // cadence of the periodic expiry check

	StoreLoadTimeout time.Duration // upper bound on store list/load backend calls

	// Paths the route guard redirects to.  They point into the SPA, not at
	// this API.
	LandingPath     string // unauthenticated users land here
	StoreSelectPath string // identity users with no resolved store
	PinLoginPath    string // shared tills whose PIN session is gone
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),      // environment (dev/test/prod)
		Port:           must("APP_PORT"),     // port to bind the HTTP server
		DBUser:         must("DB_USER"),      // database user
		DBPass:         os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:         must("DB_HOST"),      // database host
		DBPort:         must("DB_PORT"),      // database port
		DBName:         must("DB_NAME"),      // database name
		JWTSecret:      must("JWT_SECRET"),   // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		PinSessionTTL:    envDur("PIN_SESSION_TTL", 8*time.Hour),
		PinWarnThreshold: envDur("PIN_WARN_THRESHOLD", 5*time.Minute),
		PinCheckInterval: envDur("PIN_CHECK_INTERVAL", 45*time.Second),

		StoreLoadTimeout: envDur("STORE_LOAD_TIMEOUT", 20*time.Second),

		LandingPath:     envStr("GUARD_LANDING_PATH", "/"),
		StoreSelectPath: envStr("GUARD_STORE_SELECT_PATH", "/select-store"),
		PinLoginPath:    envStr("GUARD_PIN_LOGIN_PATH", "/pin-login"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
