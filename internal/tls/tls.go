// Package tls builds the TLS configuration for the control API server,
// optionally generating a self-signed certificate for development setups.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	certFileName = "tls.crt"
	keyFileName  = "tls.key"
)

// Config selects certificates for the HTTPS listener. With explicit
// CertFile/KeyFile those are used; otherwise Dir is searched for tls.crt and
// tls.key, generating a self-signed pair there when AutoGenerate is set.
type Config struct {
	Enabled      bool   `toml:"enabled" mapstructure:"enabled"`
	CertFile     string `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile      string `toml:"key_file" mapstructure:"key_file"`
	Dir          string `toml:"dir" mapstructure:"dir"`
	AutoGenerate bool   `toml:"auto_generate" mapstructure:"auto_generate"`
	MinVersion   string `toml:"min_version" mapstructure:"min_version"`
	MaxVersion   string `toml:"max_version" mapstructure:"max_version"`
}

// Setup returns the *tls.Config for the server, or (nil, nil) when TLS is
// disabled. Certificates are re-read per handshake so rotation does not
// require a restart.
func Setup(c Config) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}

	minVer, maxVer := resolveVersions(c)

	if c.CertFile != "" && c.KeyFile != "" {
		return newConfig(c.CertFile, c.KeyFile, minVer, maxVer), nil
	}

	if c.Dir != "" {
		certPath := filepath.Join(c.Dir, certFileName)
		keyPath := filepath.Join(c.Dir, keyFileName)
		if c.AutoGenerate && !certificatesExist(certPath, keyPath) {
			if err := generateDefaultCertificate(c.Dir); err != nil {
				return nil, fmt.Errorf("certificate generation failed: %w", err)
			}
		}
		return newConfig(certPath, keyPath, minVer, maxVer), nil
	}

	return nil, errors.New("tls enabled but no certificate files or directory configured")
}

func newConfig(certPath, keyPath string, minVer, maxVer uint16) *tls.Config {
	// #nosec G402 minimum version is resolved above, defaulting to 1.3
	return &tls.Config{
		GetCertificate: certificateLoader(certPath, keyPath),
		MinVersion:     minVer,
		MaxVersion:     maxVer,
	}
}

func parseVersion(v string) (uint16, bool) {
	switch strings.ToLower(v) {
	case "1.2", "tls1.2":
		return tls.VersionTLS12, true
	case "", "default", "1.3", "tls1.3":
		return tls.VersionTLS13, v != "" && v != "default"
	default:
		return 0, false
	}
}

func resolveVersions(c Config) (minVer, maxVer uint16) {
	minVer, maxVer = tls.VersionTLS13, tls.VersionTLS13
	if v, ok := parseVersion(c.MinVersion); ok {
		minVer = v
	}
	if v, ok := parseVersion(c.MaxVersion); ok {
		maxVer = v
	}
	return minVer, maxVer
}

// certificateLoader reads the key pair on every handshake. File reads are
// restricted to the certificate's directory.
func certificateLoader(certPath, keyPath string) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	baseDir := filepath.Dir(certPath)
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		certPEM, err := safeReadFile(baseDir, certPath)
		if err != nil {
			return nil, err
		}
		keyPEM, err := safeReadFile(baseDir, keyPath)
		if err != nil {
			return nil, err
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, err
		}
		return &cert, nil
	}
}

func safeReadFile(baseDir, p string) ([]byte, error) {
	clean := filepath.Clean(p)
	if baseDir != "" {
		absBase, _ := filepath.Abs(baseDir)
		absFile, _ := filepath.Abs(clean)
		if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) && absFile != absBase {
			return nil, errors.New("file path outside of certificate directory")
		}
	}
	return os.ReadFile(clean)
}

func certificatesExist(certPath, keyPath string) bool {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}
