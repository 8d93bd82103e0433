package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/evarconv/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <signature>",
		Short: "Check a signature without printing it",
		Long: `Compile a CUE signature and report every declaration the engine
cannot accept: open terms, evars, unknown globals, constructors that do
not build their inductive, ill-shaped matches and fixpoints.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadSignature(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	for _, f := range loaded.Files {
		formatter.VerboseLog("Validating %s", f)
	}

	if verrs := compiler.Validate(loaded.Sig); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Signature is valid")
	return nil
}

// outputValidationErrors reports validation findings. The signature
// compiled, so this is a failure rather than a command error.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	msg := fmt.Sprintf("validation failed with %d error(s)", len(errs))
	if formatter.JSON() {
		first := CLIError{Code: errs[0].Code, Message: errs[0].Message}
		if err := formatter.Result(false, ValidationResult{Valid: false, Errors: errs}, &first); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
	}
	return NewExitError(ExitFailure, msg)
}
