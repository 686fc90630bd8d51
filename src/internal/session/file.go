// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package session

import (
	"crypto/x509"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/logger"
)

//go:embed schema.json
var configSchema []byte

// configFormat represents supported configuration file formats.
type configFormat int

const (
	// configFormatJSON represents JSON configuration format (.json)
	configFormatJSON configFormat = iota
	// configFormatYAML represents YAML configuration format (.yaml, .yml)
	configFormatYAML
)

// fileConfig is the on-disk shape of a session configuration.
// Paths are resolved relative to the directory holding the file.
type fileConfig struct {
	Versions     []string `json:"versions" yaml:"versions"`
	CipherSuites []string `json:"cipherSuites" yaml:"cipherSuites"`
	Verify       string   `json:"verify" yaml:"verify"`
	ServerName   string   `json:"serverName" yaml:"serverName"`
	Certificate  string   `json:"certificate" yaml:"certificate"`
	Key          string   `json:"key" yaml:"key"`
	Anchors      []string `json:"anchors" yaml:"anchors"`
	Revocation   *struct {
		Strict  bool `json:"strict" yaml:"strict"`
		CRL     bool `json:"crl" yaml:"crl"`
		OCSP    bool `json:"ocsp" yaml:"ocsp"`
		Timeout int  `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	} `json:"revocation" yaml:"revocation"`
}

// LoadOptions carries the inputs of [LoadFile] that do not belong in a file.
type LoadOptions struct {
	// Store receives the loaded key and chains. Nil uses a private store
	// that is closed before LoadFile returns.
	Store *x509certs.Store

	// Passphrase decrypts the key file. It is wiped once the key is parsed.
	Passphrase []byte

	// Logger is passed through to [Config.Logger].
	Logger logger.Logger

	// Version is the application version sent by revocation fetches.
	Version string

	// CRLCache is shared by CRL checkers. Nil creates one per context.
	CRLCache *x509chain.CRLCache
}

// detectConfigFormat determines the configuration file format based on file extension.
func detectConfigFormat(configPath string) configFormat {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return configFormatYAML
	default:
		return configFormatJSON
	}
}

// unmarshalConfig unmarshals data into out based on the specified format.
func unmarshalConfig(data []byte, out any, format configFormat) error {
	switch format {
	case configFormatYAML:
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: failed to parse YAML config file: %v", ErrConfiguration, err)
		}
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: failed to parse JSON config file: %v", ErrConfiguration, err)
		}
	}
	return nil
}

// validateDocument checks doc against the embedded schema and reports every violation.
func validateDocument(doc any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(configSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: schema validation: %v", ErrConfiguration, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		field := strings.TrimPrefix(e.Field(), "(root).")
		problems = append(problems, field+": "+e.Description())
	}
	return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
}

// LoadFile builds a [Context] from a JSON or YAML file.
//
// The format is chosen by extension (.yaml and .yml are YAML, anything else is
// JSON). The document is validated against an embedded JSON schema before any
// referenced file is read. Omitted versions and suites default to every
// supported value; an omitted verify mode defaults to "peer".
func LoadFile(path string, opts LoadOptions) (*Context, error) {
	defer memguard.WipeBytes(opts.Passphrase)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
	}

	format := detectConfigFormat(path)

	var doc any
	if err := unmarshalConfig(data, &doc, format); err != nil {
		return nil, err
	}
	if err := validateDocument(doc); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := unmarshalConfig(data, &fc, format); err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store = x509certs.NewStore()
		defer store.Close()
	}

	cfg, err := fc.build(filepath.Dir(path), path, store, opts)
	if cfg.Key != nil {
		// New takes its own reference; the store keeps the one it holds.
		defer cfg.Key.Release()
	}
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return New(cfg)
}

func (fc *fileConfig) build(dir, name string, store *x509certs.Store, opts LoadOptions) (Config, error) {
	cfg := Config{
		ServerName: fc.ServerName,
		Logger:     opts.Logger,
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	if len(fc.Versions) == 0 {
		cfg.Versions = Versions()
	}
	for _, v := range fc.Versions {
		version, err := ParseVersion(v)
		if err != nil {
			return cfg, err
		}
		cfg.Versions = append(cfg.Versions, version)
	}

	if len(fc.CipherSuites) == 0 {
		for _, s := range CipherSuites() {
			for _, v := range cfg.Versions {
				if s.SupportedBy(v) {
					cfg.CipherSuites = append(cfg.CipherSuites, s)
					break
				}
			}
		}
	}
	for _, s := range fc.CipherSuites {
		suite, err := ParseCipherSuite(s)
		if err != nil {
			return cfg, err
		}
		cfg.CipherSuites = append(cfg.CipherSuites, suite)
	}

	cfg.VerifyMode = VerifyPeer
	if fc.Verify != "" {
		mode, err := ParseVerifyMode(fc.Verify)
		if err != nil {
			return cfg, err
		}
		cfg.VerifyMode = mode
	}

	if fc.Key != "" {
		keyName := name + "#key"
		if err := store.LoadKeyFile(keyName, resolve(fc.Key), opts.Passphrase); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		key, err := store.Key(keyName)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		cfg.Key = key

		chainName := name + "#certificate"
		if err := store.LoadChainFile(chainName, resolve(fc.Certificate)); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		if cfg.Certificates, err = store.Chain(chainName); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}

	if len(fc.Anchors) > 0 {
		anchorName := name + "#anchors"
		var roots []*x509.Certificate
		for i, p := range fc.Anchors {
			entry := fmt.Sprintf("%s/%d", anchorName, i)
			if err := store.LoadChainFile(entry, resolve(p)); err != nil {
				return cfg, fmt.Errorf("%w: %w", ErrConfiguration, err)
			}
			certs, err := store.Chain(entry)
			if err != nil {
				return cfg, fmt.Errorf("%w: %w", ErrConfiguration, err)
			}
			roots = append(roots, certs...)
		}
		anchors, err := x509chain.NewAnchorSet(roots...)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		cfg.Anchors = anchors
	}

	if fc.Revocation != nil {
		cfg.Revocation = fc.revocationPolicy(opts)
	}

	return cfg, nil
}

func (fc *fileConfig) revocationPolicy(opts LoadOptions) *x509chain.RevocationPolicy {
	httpConfig := x509chain.NewHTTPConfig(opts.Version)
	if fc.Revocation.Timeout > 0 {
		httpConfig.Timeout = time.Duration(fc.Revocation.Timeout) * time.Second
	}

	var checkers x509chain.ChainChecker
	if fc.Revocation.OCSP {
		checkers = append(checkers, x509chain.NewOCSPChecker(httpConfig))
	}
	if fc.Revocation.CRL {
		cache := opts.CRLCache
		if cache == nil {
			cache = x509chain.NewCRLCache(nil)
		}
		checkers = append(checkers, x509chain.NewCRLChecker(httpConfig, cache))
	}

	policy := &x509chain.RevocationPolicy{Strict: fc.Revocation.Strict}
	if len(checkers) > 0 {
		policy.Checker = checkers
	}
	return policy
}
