// Package pmerr defines the error taxonomy shared by every PM component.
package pmerr

import "fmt"

// Code identifies a class of failure from the error taxonomy in the spec.
type Code string

// The error codes named by the specification.
const (
	CodePackageNotFound    Code = "PACKAGE_NOT_FOUND"
	CodeVersionNotFound    Code = "VERSION_NOT_FOUND"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeTarballError       Code = "TARBALL_ERROR"
	CodeIntegrityError     Code = "INTEGRITY_ERROR"
	CodeInvalidPackageJSON Code = "INVALID_PACKAGE_JSON"
	CodeResolutionLimit    Code = "RESOLUTION_LIMIT"
	CodeScriptError        Code = "SCRIPT_ERROR"
)

// Error is the PM's typed error. It always carries a Code so callers can
// branch on failure kind without string matching.
type Error struct {
	Code    Code
	Message string
	Name    string
	Version string
}

func (e *Error) Error() string {
	switch {
	case e.Name != "" && e.Version != "":
		return fmt.Sprintf("%s: %s@%s: %s", e.Code, e.Name, e.Version, e.Message)
	case e.Name != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Name, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// New builds a bare taxonomy error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ForPackage builds a taxonomy error scoped to a package name.
func ForPackage(code Code, name, message string) *Error {
	return &Error{Code: code, Name: name, Message: message}
}

// ForVersion builds a taxonomy error scoped to a package name and version.
func ForVersion(code Code, name, version, message string) *Error {
	return &Error{Code: code, Name: name, Version: version, Message: message}
}

// Is reports whether err is a pmerr.Error with the given code, unwrapping
// through any wrapper (e.g. github.com/pkg/errors) that exposes Cause()/Unwrap().
func Is(err error, code Code) bool {
	type causer interface{ Cause() error }
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if pe, ok := err.(*Error); ok {
			return pe.Code == code
		}
		if c, ok := err.(causer); ok {
			err = c.Cause()
			continue
		}
		if u, ok := err.(unwrapper); ok {
			err = u.Unwrap()
			continue
		}
		break
	}
	return false
}
