package club

import (
	"errors"
	"fmt"
)

// FetchErrorKind tells which part of a metadata fetch failed.
type FetchErrorKind int

const (
	FetchRetrieval FetchErrorKind = iota + 1
	FetchTitleMissing
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchRetrieval:
		return "retrieval"
	case FetchTitleMissing:
		return "title missing"
	default:
		return "unknown"
	}
}

// FetchError is returned when a film page cannot be turned into a MovieInfo.
type FetchError struct {
	Err  error
	URL  string
	Kind FetchErrorKind
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is a FetchError of the given kind.
func IsFetchError(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

// VotingErrorKind tells why a poll winner could not be determined.
type VotingErrorKind int

const (
	VotingNoEmbeddedURLs VotingErrorKind = iota + 1
	VotingNoPoll
	VotingCountMismatch
	VotingTie
)

func (k VotingErrorKind) String() string {
	switch k {
	case VotingNoEmbeddedURLs:
		return "no embedded URLs"
	case VotingNoPoll:
		return "no poll"
	case VotingCountMismatch:
		return "count mismatch"
	case VotingTie:
		return "tie"
	default:
		return "unknown"
	}
}

// VotingError is a recoverable voting failure. Reply is safe to show to users.
type VotingError struct {
	Reason string
	Reply  string
	Kind   VotingErrorKind
}

func (e *VotingError) Error() string {
	return "voting: " + e.Reason
}

// IsVotingError reports whether err is a VotingError of the given kind.
func IsVotingError(err error, kind VotingErrorKind) bool {
	var ve *VotingError
	return errors.As(err, &ve) && ve.Kind == kind
}

// ConfigErrorKind classifies fatal configuration problems found at load.
type ConfigErrorKind int

const (
	ConfigMissingEntity ConfigErrorKind = iota + 1
	ConfigWrongChannelType
	ConfigForeignEntity
	ConfigDuplicateDomain
)

func (k ConfigErrorKind) String() string {
	switch k {
	case ConfigMissingEntity:
		return "missing entity"
	case ConfigWrongChannelType:
		return "wrong channel type"
	case ConfigForeignEntity:
		return "foreign entity"
	case ConfigDuplicateDomain:
		return "duplicate domain"
	default:
		return "unknown"
	}
}

// ConfigError is a fatal error in a domain's configuration.
type ConfigError struct {
	Domain string
	Detail string
	Kind   ConfigErrorKind
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("domain %q: %s: %s", e.Domain, e.Kind, e.Detail)
}

// IsConfigError reports whether err is a ConfigError of the given kind.
func IsConfigError(err error, kind ConfigErrorKind) bool {
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Kind == kind
}
