package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const (
	projectIDVar   = "GOOGLE_CLOUD_PROJECT"
	credentialsVar = "GOOGLE_APPLICATION_CREDENTIALS"
	backendVar     = "STORE_BACKEND"
	portEnvVar     = "PORT"
	dataDirVar     = "DATA_DIR"
	jwtSecretVar   = "JWT_SECRET"
	tokenTTLVar    = "TOKEN_TTL"
	logLevelVar    = "LOG_LEVEL"
	appNameVar     = "APP_NAME"
)

const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// DevJWTSecret signs tokens when JWT_SECRET is unset on the memory backend.
const DevJWTSecret = "firetodo-dev-secret"

var ErrJWTSecretRequired = errors.New("JWT_SECRET environment variable is required with the firestore backend")

const defaultTokenTTL = 720 * time.Hour

type EnvVars struct{}

// Load reads a .env file from the working directory if there is one.
func Load() EnvVars {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}
	return EnvVars{}
}

func (EnvVars) GetProjectID() string {
	return GetEnv(projectIDVar, "")
}

func (EnvVars) GetCredentialsFile() string {
	return GetEnv(credentialsVar, "")
}

// GetStoreBackend returns firestore or memory. Without a project id the
// default is memory.
func (e EnvVars) GetStoreBackend() string {
	def := BackendMemory
	if e.GetProjectID() != "" {
		def = BackendFirestore
	}
	backend := strings.ToLower(GetEnv(backendVar, def))
	if backend != BackendFirestore && backend != BackendMemory {
		log.Warn().Str("backend", backend).Msg("Unknown store backend, using memory")
		return BackendMemory
	}
	return backend
}

// ClientOptions returns the Firestore client options implied by the environment.
func (e EnvVars) ClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if f := e.GetCredentialsFile(); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	return opts
}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (EnvVars) GetDataDir() string {
	if dir := GetEnv(dataDirVar, ""); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".firetodo"
	}
	return filepath.Join(home, ".firetodo")
}

// GetJWTSecret returns the token signing secret. The development secret is
// only used with the memory backend.
func (e EnvVars) GetJWTSecret() ([]byte, error) {
	if secret := GetEnv(jwtSecretVar, ""); secret != "" {
		return []byte(secret), nil
	}
	if e.GetStoreBackend() == BackendFirestore {
		return nil, ErrJWTSecretRequired
	}
	return []byte(DevJWTSecret), nil
}

func (EnvVars) GetTokenTTL() time.Duration {
	raw := GetEnv(tokenTTLVar, "")
	if raw == "" {
		return defaultTokenTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		log.Warn().Str("value", raw).Msg("Invalid TOKEN_TTL, using default")
		return defaultTokenTTL
	}
	return ttl
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "firetodo")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
