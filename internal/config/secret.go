package config

import (
	"fmt"
	"os"
	"strings"
)

// Secret contains secret value or reference to it.
//
// Value "file:<path>" is read from file, value "env:<name>" is read from
// environment variable, every other value is used as is.
type Secret string

const (
	fileSecretPrefix = "file:"
	envSecretPrefix  = "env:"
)

// Secret returns resolved secret value.
func (s Secret) Secret() (string, error) {
	value := string(s)
	switch {
	case strings.HasPrefix(value, fileSecretPrefix):
		bytes, err := os.ReadFile(strings.TrimPrefix(value, fileSecretPrefix))
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(bytes), "\r\n"), nil
	case strings.HasPrefix(value, envSecretPrefix):
		name := strings.TrimPrefix(value, envSecretPrefix)
		env, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %q does not exist", name)
		}
		return env, nil
	default:
		return value, nil
	}
}

// Empty returns true if secret is not specified.
func (s Secret) Empty() bool {
	return len(s) == 0
}
