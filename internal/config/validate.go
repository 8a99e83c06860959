package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codeindex-dev/codeindex/internal/embedding"
)

var (
	// ErrEmptyModel indicates a profile is missing its model identifier.
	ErrEmptyModel = errors.New("empty embedding model")

	// ErrInvalidDimensions indicates invalid embedding dimensions.
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrInvalidBatchSize indicates a non-positive batch size.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrDuplicateProfile indicates two profiles share a name.
	ErrDuplicateProfile = errors.New("duplicate profile name")
)

// Validate checks that a loaded Config is internally consistent, in the
// style of the teacher's validate.go (per-section validators joined into
// one error).
func Validate(cfg *Config) error {
	var errs []error

	if err := validateProfile(&cfg.Profile); err != nil {
		errs = append(errs, fmt.Errorf("profile: %w", err))
	}

	seen := map[string]bool{}
	for _, p := range cfg.CustomProfiles {
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("customProfiles: %w: %s", ErrDuplicateProfile, p.Name))
			continue
		}
		seen[p.Name] = true
		p := p
		if err := validateProfile(&p); err != nil {
			errs = append(errs, fmt.Errorf("customProfiles[%s]: %w", p.Name, err))
		}
	}

	return joinErrors(errs)
}

func validateProfile(p *embedding.Profile) error {
	var errs []error

	if strings.TrimSpace(p.Model) == "" {
		errs = append(errs, ErrEmptyModel)
	}
	if p.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidDimensions, p.Dimensions))
	}
	if p.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, p.BatchSize))
	}

	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
