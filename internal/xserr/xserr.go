// Package xserr defines the XenStore wire error taxonomy.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package xserr

import "fmt"

// Code identifies one of the XSD wire error strings.
type Code int

const (
	// CodeOK is not transmitted on the wire; it marks the absence of an error.
	CodeOK Code = iota
	CodeEINVAL
	CodeENOENT
	CodeENOMEM
	CodeEBUSY
	CodeENOSYS
	CodeE2BIG
)

var wireStrings = [...]string{
	CodeOK:     "",
	CodeEINVAL: "EINVAL",
	CodeENOENT: "ENOENT",
	CodeENOMEM: "ENOMEM",
	CodeEBUSY:  "EBUSY",
	CodeENOSYS: "ENOSYS",
	CodeE2BIG:  "E2BIG",
}

// Error is a structured error carrying a wire error code, following the
// api.Error/api.ErrorCode pattern of the teacher library.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.WireString()
	}
	return fmt.Sprintf("%s: %s", e.WireString(), e.Message)
}

// WireString returns the XSD error string transmitted in an ERROR reply payload.
func (e *Error) WireString() string {
	return wireStrings[e.Code]
}

// New constructs a structured error for the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrInvalid   = New(CodeEINVAL, "malformed request")
	ErrNotFound  = New(CodeENOENT, "no such path")
	ErrNoMemory  = New(CodeENOMEM, "allocation failure or path too long")
	ErrBusy      = New(CodeEBUSY, "transaction already in progress")
	ErrNoSys     = New(CodeENOSYS, "opcode not implemented")
	ErrTooBig    = New(CodeE2BIG, "payload exceeds ring capacity")
)

// AsXSError unwraps err into an *Error, or wraps it as an internal EINVAL.
func AsXSError(err error) *Error {
	if err == nil {
		return nil
	}
	if xe, ok := err.(*Error); ok {
		return xe
	}
	return New(CodeEINVAL, err.Error())
}
