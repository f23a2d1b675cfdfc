package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

// LogLevel defines the minimum severity for error logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Config is the top-level configuration structure for the server.
type Config struct {
	Server  *ServerConfig  `json:"server,omitempty" toml:"server,omitempty"`
	Files   *FilesConfig   `json:"files,omitempty" toml:"files,omitempty"`
	Logging *LoggingConfig `json:"logging,omitempty" toml:"logging,omitempty"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	// Address is the host:port the server listens on.
	Address string `json:"address,omitempty" toml:"address,omitempty"`
	// MaxConnections caps the number of simultaneously served connections.
	// Zero means unlimited.
	MaxConnections int `json:"max_connections,omitempty" toml:"max_connections,omitempty"`
	// ProxyProtocol enables PROXY protocol support on the listener, for
	// deployments behind a load balancer that prepends the v1/v2 header.
	ProxyProtocol bool `json:"proxy_protocol,omitempty" toml:"proxy_protocol,omitempty"`
	// MetricsAddress, when non-empty, is a separate host:port serving
	// Prometheus metrics.
	MetricsAddress string `json:"metrics_address,omitempty" toml:"metrics_address,omitempty"`
}

// FilesConfig configures static file serving.
type FilesConfig struct {
	// DocumentRoot is the absolute directory boundary all served paths must
	// resolve within.
	DocumentRoot string `json:"document_root" toml:"document_root"`
	// IndexFiles are tried in order when a directory is requested.
	IndexFiles []string `json:"index_files,omitempty" toml:"index_files,omitempty"`
	// NoSymlinks selects strict realpath resolution instead of the default
	// string-rewrite canonicalization. The default mode does not resolve
	// symlinks inside the root; see staticfile.Resolver.
	NoSymlinks bool `json:"no_symlinks,omitempty" toml:"no_symlinks,omitempty"`
	// DirectoryListing enables the generated HTML index for directories
	// without an index file. Defaults to true.
	DirectoryListing *bool `json:"directory_listing,omitempty" toml:"directory_listing,omitempty"`
	// ErrorDocument is a URL path resolved against the document root and
	// served when a request cannot be resolved. Optional.
	ErrorDocument string `json:"error_document,omitempty" toml:"error_document,omitempty"`
	// Authentication, when present, protects everything under the document
	// root with HTTP Basic credentials.
	Authentication *AuthConfig `json:"authentication,omitempty" toml:"authentication,omitempty"`
}

// AuthConfig holds the HTTP Basic authentication settings.
type AuthConfig struct {
	// Realm is sent in the WWW-Authenticate challenge.
	Realm string `json:"realm,omitempty" toml:"realm,omitempty"`
	// Users maps user names to passwords.
	Users map[string]string `json:"users,omitempty" toml:"users,omitempty"`
}

// LoggingConfig holds logging configurations.
type LoggingConfig struct {
	LogLevel  LogLevel         `json:"log_level,omitempty" toml:"log_level,omitempty"`
	AccessLog *AccessLogConfig `json:"access_log,omitempty" toml:"access_log,omitempty"`
	ErrorLog  *ErrorLogConfig  `json:"error_log,omitempty" toml:"error_log,omitempty"`
}

// AccessLogConfig configures access logging.
type AccessLogConfig struct {
	Enabled *bool  `json:"enabled,omitempty" toml:"enabled,omitempty"`
	Target  string `json:"target,omitempty" toml:"target,omitempty"`
}

// ErrorLogConfig configures error logging.
type ErrorLogConfig struct {
	Target string `json:"target,omitempty" toml:"target,omitempty"`
}

// DefaultIndexFiles is used when the configuration names none.
var DefaultIndexFiles = []string{"index.html", "index.htm", "default.html"}

// IsFilePath reports whether a log target names a file rather than one of
// the standard streams.
func IsFilePath(target string) bool {
	return target != "stdout" && target != "stderr"
}

// LoadConfig reads, parses, defaults and validates a configuration file.
// TOML and JSON are both accepted; the format is chosen by file extension,
// falling back to content sniffing for unknown extensions.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		err = toml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		if looksLikeJSON(data) {
			err = json.Unmarshal(data, cfg)
		} else {
			err = toml.Unmarshal(data, cfg)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func applyDefaults(cfg *Config) {
	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Files == nil {
		cfg.Files = &FilesConfig{}
	}
	if len(cfg.Files.IndexFiles) == 0 {
		cfg.Files.IndexFiles = append([]string(nil), DefaultIndexFiles...)
	}
	if cfg.Files.DirectoryListing == nil {
		enabled := true
		cfg.Files.DirectoryListing = &enabled
	}
	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.LogLevel == "" {
		cfg.Logging.LogLevel = LogLevelInfo
	}
	if cfg.Logging.ErrorLog == nil {
		cfg.Logging.ErrorLog = &ErrorLogConfig{Target: "stderr"}
	}
	if cfg.Logging.ErrorLog.Target == "" {
		cfg.Logging.ErrorLog.Target = "stderr"
	}
	if cfg.Logging.AccessLog == nil {
		cfg.Logging.AccessLog = &AccessLogConfig{Target: "stdout"}
	}
	if cfg.Logging.AccessLog.Target == "" {
		cfg.Logging.AccessLog.Target = "stdout"
	}
}

// Validate checks a defaulted configuration, accumulating every problem it
// finds rather than stopping at the first.
func Validate(cfg *Config) error {
	var result *multierror.Error

	if cfg.Server.MaxConnections < 0 {
		result = multierror.Append(result, fmt.Errorf("server.max_connections must not be negative, got %d", cfg.Server.MaxConnections))
	}

	files := cfg.Files
	if files.DocumentRoot == "" {
		result = multierror.Append(result, fmt.Errorf("files.document_root is required"))
	} else {
		if !filepath.IsAbs(files.DocumentRoot) {
			result = multierror.Append(result, fmt.Errorf("files.document_root must be an absolute path, got %q", files.DocumentRoot))
		} else if fi, err := os.Stat(files.DocumentRoot); err != nil {
			result = multierror.Append(result, fmt.Errorf("files.document_root %q is not accessible: %w", files.DocumentRoot, err))
		} else if !fi.IsDir() {
			result = multierror.Append(result, fmt.Errorf("files.document_root %q is not a directory", files.DocumentRoot))
		}
		// Keep the root in canonical form so the resolver's containment
		// prefix check is exact.
		files.DocumentRoot = filepath.Clean(files.DocumentRoot)
	}

	for _, name := range files.IndexFiles {
		if name == "" || strings.ContainsAny(name, "/\\") {
			result = multierror.Append(result, fmt.Errorf("files.index_files entry %q must be a bare file name", name))
		}
	}

	if files.ErrorDocument != "" && !strings.HasPrefix(files.ErrorDocument, "/") {
		result = multierror.Append(result, fmt.Errorf("files.error_document %q must begin with '/'", files.ErrorDocument))
	}

	if auth := files.Authentication; auth != nil {
		if len(auth.Users) == 0 {
			result = multierror.Append(result, fmt.Errorf("files.authentication requires at least one user"))
		}
		for user := range auth.Users {
			if user == "" || strings.ContainsRune(user, ':') {
				result = multierror.Append(result, fmt.Errorf("files.authentication user %q must be non-empty and contain no ':'", user))
			}
		}
	}

	switch cfg.Logging.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		result = multierror.Append(result, fmt.Errorf("logging.log_level %q is not one of DEBUG, INFO, WARNING, ERROR", cfg.Logging.LogLevel))
	}

	return result.ErrorOrNil()
}
