package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/evarconv/internal/canonical"
	"github.com/roach88/evarconv/internal/compiler"
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/syntax"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// SignatureSummary describes a compiled signature.
type SignatureSummary struct {
	Inductives []InductiveSummary `json:"inductives"`
	Constants  []ConstantSummary  `json:"constants"`
	Structures []StructureSummary `json:"structures"`
	Canonical  []CanonicalSummary `json:"canonical"`
}

// InductiveSummary describes one inductive type.
type InductiveSummary struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Params       int      `json:"params"`
	Constructors []string `json:"constructors"`
}

// ConstantSummary describes one constant.
type ConstantSummary struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Transparent bool   `json:"transparent"`
}

// StructureSummary describes one structure.
type StructureSummary struct {
	Name        string   `json:"name"`
	Projections []string `json:"projections"`
}

// CanonicalSummary is one registered (projection, head) pair.
type CanonicalSummary struct {
	Projection string `json:"projection"`
	Key        string `json:"key"`
	Instance   string `json:"instance"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <signature>",
		Short: "Compile a CUE signature and summarise it",
		Long: `Compile the inductives, structures, constants and canonical instances
declared in a CUE file or directory, check them, and print a summary.

Exit codes:
  0 - Signature compiled and is well formed
  1 - Signature compiled but failed validation
  2 - Command error (missing files, CUE or term syntax errors)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the JSON summary to a file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadSignature(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", len(loaded.Files), path)

	if verrs := compiler.Validate(loaded.Sig); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	summary := Summarize(loaded.Sig, loaded.Registry)
	if opts.Output != "" {
		if err := writeSummary(summary, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}
	return outputCompileSuccess(formatter, summary, opts.Output)
}

// Summarize lists the declarations of sig in name order.
func Summarize(sig *env.Signature, reg *canonical.Registry) SignatureSummary {
	s := SignatureSummary{
		Inductives: []InductiveSummary{},
		Constants:  []ConstantSummary{},
		Structures: []StructureSummary{},
		Canonical:  []CanonicalSummary{},
	}
	for _, name := range sig.InductiveNames() {
		ind, _ := sig.Inductive(name)
		is := InductiveSummary{Name: name, Type: syntax.Print(sig, ind.Type), Params: ind.NParams, Constructors: []string{}}
		for _, c := range ind.Constructors {
			is.Constructors = append(is.Constructors, c.Name)
		}
		s.Inductives = append(s.Inductives, is)
		if st, ok := sig.Structure(name); ok {
			s.Structures = append(s.Structures, StructureSummary{Name: name, Projections: st.Projections})
		}
	}
	for _, name := range sig.ConstantNames() {
		c, _ := sig.Constant(name)
		cs := ConstantSummary{Name: name, Transparent: c.Body != nil}
		// Projections are generated without a declared type.
		if c.Type != nil {
			cs.Type = syntax.Print(sig, c.Type)
		}
		s.Constants = append(s.Constants, cs)
	}
	if reg != nil {
		for _, e := range reg.Entries() {
			s.Canonical = append(s.Canonical, CanonicalSummary{
				Projection: e.Projection,
				Key:        e.Key.String(),
				Instance:   e.Instance,
			})
		}
	}
	return s
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, s SignatureSummary, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(s)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d inductive(s), %d constant(s), %d structure(s), %d canonical entr(ies)\n\n",
		len(s.Inductives), len(s.Constants), len(s.Structures), len(s.Canonical))

	if len(s.Inductives) > 0 {
		fmt.Fprintln(w, "Inductives:")
		for _, ind := range s.Inductives {
			fmt.Fprintf(w, "  %s : %s  [%d constructor(s)]\n", ind.Name, ind.Type, len(ind.Constructors))
		}
		fmt.Fprintln(w)
	}
	if len(s.Constants) > 0 {
		fmt.Fprintln(w, "Constants:")
		for _, c := range s.Constants {
			kind := "axiom"
			if c.Transparent {
				kind = "definition"
			}
			if c.Type == "" {
				fmt.Fprintf(w, "  %s  (%s)\n", c.Name, kind)
				continue
			}
			fmt.Fprintf(w, "  %s : %s  (%s)\n", c.Name, c.Type, kind)
		}
		fmt.Fprintln(w)
	}
	if len(s.Canonical) > 0 {
		fmt.Fprintln(w, "Canonical instances:")
		for _, e := range s.Canonical {
			fmt.Fprintf(w, "  %s on %s → %s\n", e.Projection, e.Key, e.Instance)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote summary to %s\n", outputFile)
	}
	return nil
}

// outputLoadError reports a failure to load or compile a signature.
// These are command-level errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	if !formatter.JSON() && loadErr.Pos.IsValid() {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
}

// writeSummary writes the summary as indented JSON.
func writeSummary(s SignatureSummary, filename string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
