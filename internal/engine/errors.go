package engine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"regexp"
	"strings"

	"github.com/scrypster/companion/pkg/types"
)

// Repository errors. Each message is shown to the user as is; the storage
// cause, when there is one, stays reachable through errors.Is and errors.As.
var (
	ErrLoadPersons    = errors.New("Failed to load persons")
	ErrLoadPerson     = errors.New("Failed to load person")
	ErrInvalidPerson  = errors.New("Invalid person data")
	ErrCreatePerson   = errors.New("Failed to create person")
	ErrUpdatePerson   = errors.New("Failed to update person")
	ErrDeletePerson   = errors.New("Failed to delete person")
	ErrPersonNotFound = errors.New("Person not found")
	ErrSearchPersons  = errors.New("Failed to search persons")
	ErrCountPersons   = errors.New("Failed to get person count")

	ErrLoadMemories    = errors.New("Failed to load memories")
	ErrLoadMemory      = errors.New("Failed to load memory")
	ErrInvalidMemory   = errors.New("Invalid memory data")
	ErrCreateMemory    = errors.New("Failed to create memory")
	ErrMemoryNotFound  = errors.New("Memory not found")
	ErrUpdateMemory    = errors.New("Failed to update memory")
	ErrDeleteMemory    = errors.New("Failed to delete memory")
	ErrSearchMemories  = errors.New("Failed to search memories")
	ErrCountMemories   = errors.New("Failed to get memory count")
	ErrDeleteMemories  = errors.New("Failed to delete memories")
	ErrEmptyName       = types.ErrEmptyName
	ErrEmptyContent    = types.ErrEmptyContent
	ErrNoPersonChosen  = errors.New("Please select a person")
	ErrEmptyMemoryText = errors.New("Memory cannot be empty")
)

// repoError pairs a user-facing message with the underlying cause.
type repoError struct {
	msg   error
	cause error
}

func (e *repoError) Error() string { return e.msg.Error() }

func (e *repoError) Unwrap() []error { return []error{e.msg, e.cause} }

// fail returns msg, carrying cause for errors.Is and logging.
func fail(msg, cause error) error {
	if cause == nil {
		return msg
	}
	return &repoError{msg: msg, cause: cause}
}

// Cause returns the underlying error of a repository failure, or err itself.
func Cause(err error) error {
	var re *repoError
	if errors.As(err, &re) {
		return re.cause
	}
	return err
}

// Messages produced by FriendlyError.
const (
	MsgNoInternet   = "No Internet Connection"
	MsgTimeout      = "Connection timed out. Please try again."
	MsgSecureFailed = "Secure connection failed."
)

var analysisPrefix = regexp.MustCompile(`(?i)ai analysis failed:`)

var offlineMarkers = []string{
	"unable to resolve host",
	"address associated with hostname",
	"unknownhost",
	"no such host is known",
	"no such host",
	"generativelanguage.googleapis.com",
	"connectexception",
	"failed to connect",
	"connection refused",
}

// FriendlyError turns a failure of the AI or storage layers into a short
// message fit for display.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return MsgTimeout
		}
		return MsgNoInternet
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return MsgTimeout
		}
		return MsgNoInternet
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return MsgTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return MsgTimeout
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostnameErr      x509.HostnameError
		verifyErr        *tls.CertificateVerificationError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &invalidCert) ||
		errors.As(err, &hostnameErr) || errors.As(err, &verifyErr) {
		return MsgSecureFailed
	}

	return friendlyMessage(err.Error())
}

func friendlyMessage(raw string) string {
	if analysisPrefix.MatchString(raw) {
		return friendlyMessage(strings.TrimSpace(analysisPrefix.ReplaceAllString(raw, "")))
	}

	lower := strings.ToLower(raw)
	for _, marker := range offlineMarkers {
		if strings.Contains(lower, marker) {
			return MsgNoInternet
		}
	}
	switch {
	case strings.Contains(lower, "timeout"):
		return MsgTimeout
	case strings.Contains(lower, "ssl"), strings.Contains(lower, "tls:"), strings.Contains(lower, "x509:"):
		return MsgSecureFailed
	}
	return raw
}
