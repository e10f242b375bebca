package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedProvider is returned for provider names outside the closed set.
var ErrUnsupportedProvider = errors.New("Unsupported provider")

// Provider names a supported LLM vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ValidateProvider checks a raw provider name before any request is attempted.
func ValidateProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderAnthropic, ProviderOpenAI:
		return Provider(name), nil
	default:
		return "", ErrUnsupportedProvider
	}
}

// ModelConfigurationError reports a setup problem (such as a missing credential)
// that the caller should map to a client-correctable response.
type ModelConfigurationError struct {
	Provider Provider
	Message  string
}

func (e *ModelConfigurationError) Error() string {
	return e.Message
}

func missingKeyError(p Provider) *ModelConfigurationError {
	return &ModelConfigurationError{
		Provider: p,
		Message:  fmt.Sprintf("Missing %s API key. Select a mock model or configure the key.", strings.ToUpper(string(p))),
	}
}

// IsConfigurationError reports whether err is a configuration-class error.
func IsConfigurationError(err error) bool {
	var target *ModelConfigurationError
	return errors.As(err, &target) || errors.Is(err, ErrUnsupportedProvider)
}
