package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	errwrap "github.com/callgate/callgate/internal/errors"
)

// ExitCodeFor picks the foundry exit code for a command error. Envelopes from
// serve and the admin commands carry the failing concern in their code; any
// other error is a generic failure.
func ExitCodeFor(err error) foundry.ExitCode {
	var envelope *errors.ErrorEnvelope
	if !stderrors.As(err, &envelope) {
		return foundry.ExitFailure
	}
	switch envelope.Code {
	case errwrap.CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case errwrap.CodeExternalService, errwrap.CodeServiceUnavailable:
		return foundry.ExitExternalServiceUnavailable
	case errwrap.CodeTimeout:
		return foundry.ExitOperationTimeout
	case errwrap.CodeInvalidInput, errwrap.CodeValidationFailed:
		return foundry.ExitInvalidArgument
	}
	return foundry.ExitFailure
}

// ExitWithCode logs msg with the exit code metadata and exits. A nil logger
// falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(exitCode)
	}
	if logger == nil {
		writeFatal(msg, err, info)
		os.Exit(info.Code)
	}

	fields := []zap.Field{
		zap.String("service", serviceName()),
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID))
		if envelope.Context != nil {
			// Gate step, store backend and similar.
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if envelope.Original != nil {
			fields = append(fields, zap.Any("cause", envelope.Original))
		}
	}
	fields = append(fields, zap.Error(err))
	logger.Error(msg, fields...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr exits without a logger, for failures before the CLI
// logger exists and for the top-level command error.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(exitCode)
	}
	writeFatal(msg, err, info)
	os.Exit(info.Code)
}

func writeFatal(msg string, err error, info foundry.ExitCodeInfo) {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(os.Stderr, "%s: FATAL: %s\n", serviceName(), msg)
	case stderrors.As(err, &envelope):
		fmt.Fprintf(os.Stderr, "%s: FATAL: %s [%s]: %s\n", serviceName(), msg, envelope.Code, envelope.Message)
		if envelope.Original != nil {
			fmt.Fprintf(os.Stderr, "Cause: %v\n", envelope.Original)
		}
	default:
		fmt.Fprintf(os.Stderr, "%s: FATAL: %s: %v\n", serviceName(), msg, err)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
}

func serviceName() string {
	if appIdentity != nil && appIdentity.BinaryName != "" {
		return appIdentity.BinaryName
	}
	return "callgate"
}
