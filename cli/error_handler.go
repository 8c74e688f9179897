package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/tui/theme"
)

// ErrorHandler prints user-friendly messages for known error codes.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates an error handler writing to out.
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose, Out: out}
}

// Handle prints err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := theme.DefaultTheme
	fail := func(format string, args ...any) {
		fmt.Fprintf(h.Out, "%s %s\n", t.Error.Render("✗"), fmt.Sprintf(format, args...))
	}
	hint := func(format string, args ...any) {
		fmt.Fprintln(h.Out, t.Muted.Render(fmt.Sprintf(format, args...)))
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fail("Configuration not found")
		hint("Create crownest.yml or pass --config. 'crownest config' prints the defaults.")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fail("Invalid configuration: %v", err)

	case errors.ErrCodePermissionDenied:
		domain, _ := errors.Detail(err, "domain")
		fail("Only the GM may change %v", domain)

	case errors.ErrCodePersistenceFailed:
		fail("The change was not saved and has been rolled back")
		hint("Check that the store or relay is reachable and try again.")

	case errors.ErrCodeRelayUnavailable:
		address, _ := errors.Detail(err, "address")
		fail("No relay answering at %v", address)
		hint("Start one with 'crownest relay start' or use --store file.")

	case errors.ErrCodeRelayRunning:
		pid, _ := errors.Detail(err, "pid")
		fail("A relay is already running (PID %v)", pid)
		hint("Stop it with 'crownest relay stop'.")

	case errors.ErrCodeUnknownDomain:
		domain, _ := errors.Detail(err, "domain")
		fail("Unknown domain '%v'", domain)
		var names []string
		for _, d := range envelope.DefaultRegistry().Domains() {
			names = append(names, string(d.Domain))
		}
		hint("Known domains: %s", strings.Join(names, ", "))

	case errors.ErrCodeNotFound:
		fail("%v", messageOf(err))

	default:
		fail("Error: %v", err)
	}

	if h.Verbose {
		var nestErr *errors.NestError
		if stderrors.As(err, &nestErr) {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", nestErr.ToJSON())
		}
	}
	return err
}

func messageOf(err error) string {
	var nestErr *errors.NestError
	if stderrors.As(err, &nestErr) {
		return nestErr.Message
	}
	return err.Error()
}
