// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SecretStore resolves secret aliases to their values. Configuration and
// catalog objects only ever carry aliases.
type SecretStore interface {
	Resolve(alias string) (string, error)
}

// OpenSecretStore opens the store named by a secrets URL. The secret key is
// only used by sealed stores.
func OpenSecretStore(storeURL, secretKey string) (SecretStore, error) {
	scheme, rest, found := strings.Cut(storeURL, ":")
	if !found {
		return nil, Error.New("malformed secrets url %q", storeURL)
	}

	switch scheme {
	case "env":
		return envSecretStore{}, nil
	case "file":
		return openFileSecrets(rest)
	case "aes+file":
		if secretKey == "" {
			return nil, Error.New("secret store %q requires a secret key", storeURL)
		}
		return openSealedSecrets(rest, secretKey)
	default:
		return nil, Error.New("unrecognized secret store scheme %q", scheme)
	}
}

// envSecretStore resolves aliases as environment variables.
type envSecretStore struct{}

func (envSecretStore) Resolve(alias string) (string, error) {
	value, ok := os.LookupEnv(alias)
	if !ok {
		return "", Error.New("secret alias %q is not set in the environment", alias)
	}
	return value, nil
}

// mapSecretStore serves secrets from an in-memory map, loaded from a plain or
// sealed file.
type mapSecretStore map[string]string

func (s mapSecretStore) Resolve(alias string) (string, error) {
	value, ok := s[alias]
	if !ok {
		return "", Error.New("secret alias %q not found in the secret store", alias)
	}
	return value, nil
}

func openFileSecrets(path string) (SecretStore, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, Error.New("unable to open secret store: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, Error.New("secret store %s is readable by other users", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Error.New("unable to read secret store: %w", err)
	}
	return parseSecrets(data)
}

func openSealedSecrets(path, secretKey string) (SecretStore, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, Error.New("unable to read secret store: %w", err)
	}

	gcm, err := secretCipher(secretKey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, Error.New("secret store %s is truncated", path)
	}

	nonce, box := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, box, nil)
	if err != nil {
		return nil, Error.New("unable to unseal secret store %s: wrong key or corrupt file", path)
	}
	return parseSecrets(data)
}

// SealSecrets writes an encrypted secret store file for a deployment.
func SealSecrets(path, secretKey string, secrets map[string]string) error {
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return Error.Wrap(err)
	}

	gcm, err := secretCipher(secretKey)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Error.Wrap(err)
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return Error.New("unable to write secret store: %w", err)
	}
	return nil
}

func secretCipher(secretKey string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(secretKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, Error.Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return gcm, nil
}

func parseSecrets(data []byte) (SecretStore, error) {
	secrets := map[string]string{}
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, Error.New("malformed secret store: %w", err)
	}
	return mapSecretStore(secrets), nil
}

// ResolveSecrets resolves every secret alias of every resource and returns
// the values keyed by resource and property name. The config itself is left
// holding aliases only.
func ResolveSecrets(conf *Config, store SecretStore) (map[string]map[string]string, error) {
	resolved := map[string]map[string]string{}
	for name, resource := range conf.Resources {
		if len(resource.Secrets) == 0 {
			continue
		}
		values := map[string]string{}
		for property, alias := range resource.Secrets {
			value, err := store.Resolve(alias)
			if err != nil {
				return nil, Error.New("resource %q property %q: %w", name, property, err)
			}
			values[property] = value
		}
		resolved[name] = values
	}
	return resolved, nil
}
