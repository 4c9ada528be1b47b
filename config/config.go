package config

import (
	"log"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Probe modes accepted by GATE_PROBE.
const (
	ProbeTCP      = "tcp"
	ProbePostgres = "postgres"
	ProbeRedis    = "redis"
	ProbeHTTP     = "http"
)

// GateConfig holds the startup gate configuration for one entrypoint binary.
type GateConfig struct {
	Host          string
	Port          int
	ProbeInterval time.Duration
	MaxAttempts   int
	DialTimeout   time.Duration
	Probe         string
	ProbeURL      string
	SkipSetup     bool
	PythonBin     string
	ManagePath    string
}

// Addr returns the probe target as host:port.
func (c *GateConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadGateConfig loads gate settings from environment variables. The host and
// port keys differ per service profile, so the caller passes them in along
// with the compose-network defaults used when the variables are unset.
func LoadGateConfig(hostKey, portKey, defaultHost string, defaultPort int) *GateConfig {
	interval := GetEnvAsInt("GATE_PROBE_INTERVAL", 1)
	if interval <= 0 {
		log.Printf("Warning: GATE_PROBE_INTERVAL must be positive, using 1s")
		interval = 1
	}
	attempts := GetEnvAsInt("GATE_MAX_ATTEMPTS", 30)
	if attempts <= 0 {
		log.Printf("Warning: GATE_MAX_ATTEMPTS must be positive, using 30")
		attempts = 30
	}
	dialSeconds := GetEnvAsInt("GATE_DIAL_TIMEOUT", interval)
	if dialSeconds <= 0 {
		dialSeconds = interval
	}

	probe := strings.ToLower(GetEnvOrDefault("GATE_PROBE", ProbeTCP))
	switch probe {
	case ProbeTCP, ProbePostgres, ProbeRedis, ProbeHTTP:
	default:
		log.Fatalf("💥 [FATAL] GATE_PROBE must be one of tcp, postgres, redis, http (got %q)", probe)
	}
	probeURL := GetEnvOrDefault("GATE_PROBE_URL", "")
	if probe == ProbeHTTP && probeURL == "" {
		log.Fatalf("💥 [FATAL] GATE_PROBE_URL is required when GATE_PROBE=http")
	}

	return &GateConfig{
		Host:          GetEnvOrDefault(hostKey, defaultHost),
		Port:          GetEnvAsInt(portKey, defaultPort),
		ProbeInterval: time.Duration(interval) * time.Second,
		MaxAttempts:   attempts,
		DialTimeout:   time.Duration(dialSeconds) * time.Second,
		Probe:         probe,
		ProbeURL:      probeURL,
		SkipSetup:     GetEnvAsBool("GATE_SKIP_SETUP", false),
		PythonBin:     GetEnvOrDefault("GATE_PYTHON_BIN", "python"),
		ManagePath:    GetEnvOrDefault("GATE_MANAGE_PATH", "manage.py"),
	}
}

// ServiceBuild names one image to build and the docker context it builds from.
type ServiceBuild struct {
	Name    string
	Context string
}

// ReleaseConfig holds settings for the image build-and-push helper.
type ReleaseConfig struct {
	Registry    string
	Tag         string
	Services    []ServiceBuild
	Push        bool
	PushLatest  bool
	DockerBin   string
	ContextRoot string
}

// LoadReleaseConfig loads release settings from environment variables. An
// empty Tag means the caller should resolve one from git metadata.
func LoadReleaseConfig() *ReleaseConfig {
	root := GetEnvOrDefault("RELEASE_CONTEXT_ROOT", ".")
	names := GetEnvAsStringSlice("RELEASE_SERVICES", []string{"user-service", "product-service"})
	services := make([]ServiceBuild, 0, len(names))
	for _, name := range names {
		services = append(services, ServiceBuild{Name: name, Context: root + "/" + name})
	}
	return &ReleaseConfig{
		Registry:    strings.TrimSuffix(GetEnvOrDefault("DOCKER_REGISTRY", ""), "/"),
		Tag:         GetEnvOrDefault("IMAGE_TAG", ""),
		Services:    services,
		Push:        GetEnvAsBool("RELEASE_PUSH", true),
		PushLatest:  GetEnvAsBool("RELEASE_PUSH_LATEST", false),
		DockerBin:   GetEnvOrDefault("DOCKER_BIN", "docker"),
		ContextRoot: root,
	}
}

// LoadtestConfig holds settings for the load generator. Zero Workers or
// Duration means the plan file values apply.
type LoadtestConfig struct {
	UserBaseURL    string
	ProductBaseURL string
	PlanPath       string
	Workers        int
	Duration       time.Duration
	ReadyAttempts  int
	ReadyInterval  time.Duration
	CSVPath        string
}

// LoadLoadtestConfig loads load generator settings from environment variables.
func LoadLoadtestConfig() *LoadtestConfig {
	return &LoadtestConfig{
		UserBaseURL:    strings.TrimSuffix(GetEnvOrDefault("USER_SERVICE_URL", "http://localhost:8000"), "/"),
		ProductBaseURL: strings.TrimSuffix(GetEnvOrDefault("PRODUCT_SERVICE_URL", "http://localhost:8001"), "/"),
		PlanPath:       GetEnvOrDefault("LOAD_PLAN", ""),
		Workers:        GetEnvAsInt("LOAD_WORKERS", 0),
		Duration:       time.Duration(GetEnvAsInt("LOAD_DURATION", 0)) * time.Second,
		ReadyAttempts:  GetEnvAsInt("LOAD_READY_ATTEMPTS", 30),
		ReadyInterval:  time.Duration(GetEnvAsInt("LOAD_READY_INTERVAL", 1)) * time.Second,
		CSVPath:        GetEnvOrDefault("LOAD_CSV", ""),
	}
}

// GetEnvOrDefault returns environment variable value or default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsBool parses environment variable as boolean
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		value = strings.ToLower(value)
		if value == "true" || value == "1" || value == "yes" {
			return true
		}
		if value == "false" || value == "0" || value == "no" {
			return false
		}
	}
	return defaultValue
}

// GetEnvAsStringSlice parses environment variable as comma-separated list
func GetEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// GetEnvAsInt parses environment variable as integer
func GetEnvAsInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// DatabaseURLFromEnv builds a postgres URL for the deep probe. DATABASE_URL
// wins when set; otherwise the URL is assembled from the POSTGRES_* variables
// the wrapped Django service already carries. Returns "" when credentials are
// missing so the caller can fall back to a plain TCP probe.
func DatabaseURLFromEnv(defaultHost string, defaultPort int) string {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		return url
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if user == "" || db == "" {
		return ""
	}
	pass := os.Getenv("POSTGRES_PASSWORD") // may contain spaces/specials
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = defaultHost
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = strconv.Itoa(defaultPort)
	}
	sslmode := strings.TrimSpace(os.Getenv("POSTGRES_SSLMODE"))
	if sslmode == "" {
		sslmode = "disable"
	}
	u := &neturl.URL{
		Scheme: "postgres",
		User:   neturl.UserPassword(user, pass),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + db,
	}
	q := neturl.Values{}
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisAddrFromEnv resolves the address and password for a redis probe.
// REDIS_URL may be a bare host:port or a redis:// URL; the password comes from
// REDIS_PASSWORD or from the URL's user component.
func RedisAddrFromEnv(defaultAddr string) (string, string) {
	rawURL := os.Getenv("REDIS_URL")
	addr := normalizeRedisAddress(rawURL)
	if addr == "" {
		addr = defaultAddr
	}
	return addr, resolveRedisPassword(rawURL, os.Getenv("REDIS_PASSWORD"))
}

// normalizeRedisAddress converts redis:// URLs into host[:port] that go-redis expects.
func normalizeRedisAddress(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if !strings.Contains(trimmed, "://") {
		return trimmed
	}
	u, err := neturl.Parse(trimmed)
	if err != nil {
		log.Printf("Warning: could not parse REDIS_URL '%s': %v", trimmed, err)
		return trimmed
	}
	if u.Host != "" {
		return u.Host
	}
	return trimmed
}

// resolveRedisPassword returns an explicit password if provided, otherwise pulls
// the password component from a redis:// URL when available.
func resolveRedisPassword(redisURL, explicit string) string {
	if explicit != "" {
		return explicit
	}
	trimmed := strings.TrimSpace(redisURL)
	if trimmed == "" || !strings.Contains(trimmed, "://") {
		return explicit
	}
	u, err := neturl.Parse(trimmed)
	if err != nil {
		return explicit
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok && pw != "" {
			return pw
		}
	}
	return explicit
}
