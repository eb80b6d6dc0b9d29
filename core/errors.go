package core

import (
	"context"
	"errors"
	"strconv"

	"slink/protocol"
)

var (
	ErrInvalidParams     = errors.New("invalid timing parameters")
	ErrBindingConflict   = errors.New("compare unit already bound")
	ErrUnknownPeripheral = errors.New("unknown timer peripheral")
	ErrUnknownUnit       = errors.New("unknown compare unit")
	ErrDuplicateChannel  = errors.New("channel bound twice")
	ErrChannelRange      = errors.New("channel id out of range")
	ErrNotConfigured     = errors.New("timer group not configured")
	ErrGroupRunning      = errors.New("timer group running")
	ErrUnknownChannel    = errors.New("unknown channel")
	ErrUnknownMode       = errors.New("unknown animation mode")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrShutdown          = errors.New("emergency stop latched")
)

// ParamError reports a Params field that breaks the phase arithmetic.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return "invalid timing parameters: " + e.Field + " " + e.Reason
}

func (e *ParamError) Unwrap() error { return ErrInvalidParams }

// BindingError carries the offending entry of a binding table.
type BindingError struct {
	Binding Binding
	Err     error
}

func (e *BindingError) Error() string {
	return "channel " + strconv.Itoa(int(e.Binding.Channel)) +
		" (timer " + strconv.Itoa(int(e.Binding.Timer)) +
		" unit " + strconv.Itoa(int(e.Binding.Unit)) + "): " + e.Err.Error()
}

func (e *BindingError) Unwrap() error { return e.Err }

// ErrorCode is the wire representation of a foreground error.
type ErrorCode uint8

const (
	CodeOK ErrorCode = iota
	CodeInvalidParams
	CodeBindingConflict
	CodeUnknownPeripheral
	CodeUnknownUnit
	CodeDuplicateChannel
	CodeChannelRange
	CodeNotConfigured
	CodeGroupRunning
	CodeUnknownChannel
	CodeUnknownMode
	CodeUnknownCommand
	CodeShutdown
	CodeCancelled
	CodeMalformed
	CodeError
)

var codeTable = []struct {
	err  error
	code ErrorCode
}{
	{ErrInvalidParams, CodeInvalidParams},
	{ErrBindingConflict, CodeBindingConflict},
	{ErrUnknownPeripheral, CodeUnknownPeripheral},
	{ErrUnknownUnit, CodeUnknownUnit},
	{ErrDuplicateChannel, CodeDuplicateChannel},
	{ErrChannelRange, CodeChannelRange},
	{ErrNotConfigured, CodeNotConfigured},
	{ErrGroupRunning, CodeGroupRunning},
	{ErrUnknownChannel, CodeUnknownChannel},
	{ErrUnknownMode, CodeUnknownMode},
	{ErrUnknownCommand, CodeUnknownCommand},
	{ErrShutdown, CodeShutdown},
	{protocol.ErrShortBuffer, CodeMalformed},
	{protocol.ErrStringSize, CodeMalformed},
}

// CodeOf maps an error to its wire code, defaulting to CodeError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancelled
	}
	return CodeError
}

// String names a code for host-side messages.
func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeInvalidParams:
		return "invalid_params"
	case CodeBindingConflict:
		return "binding_conflict"
	case CodeUnknownPeripheral:
		return "unknown_peripheral"
	case CodeUnknownUnit:
		return "unknown_unit"
	case CodeDuplicateChannel:
		return "duplicate_channel"
	case CodeChannelRange:
		return "channel_range"
	case CodeNotConfigured:
		return "not_configured"
	case CodeGroupRunning:
		return "group_running"
	case CodeUnknownChannel:
		return "unknown_channel"
	case CodeUnknownMode:
		return "unknown_mode"
	case CodeUnknownCommand:
		return "unknown_command"
	case CodeShutdown:
		return "shutdown"
	case CodeCancelled:
		return "cancelled"
	case CodeMalformed:
		return "malformed"
	}
	return "error"
}

// Err returns the sentinel a code was produced from, so errors received
// from the device can be matched with errors.Is. Codes without a sentinel
// return nil.
func (c ErrorCode) Err() error {
	switch c {
	case CodeCancelled:
		return context.Canceled
	case CodeMalformed:
		return protocol.ErrShortBuffer
	}
	for _, e := range codeTable {
		if e.code == c {
			return e.err
		}
	}
	return nil
}
