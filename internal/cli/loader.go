package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/evarconv/internal/compiler"
)

// LoadResult contains a compiled signature and where it came from.
type LoadResult struct {
	*compiler.Compiled
	Files []string // CUE files that make up the signature
}

// LoadError represents an error that occurred during signature loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSignature compiles the signature at path, a .cue file or a
// directory of them. Failures are *LoadError.
func LoadSignature(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("signature not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing signature: %v", err)}
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = FindCUEFiles(path); err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	compiled, err := compiler.LoadSignature(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{Compiled: compiled, Files: files}, nil
}

// FindCUEFiles returns the .cue files directly inside dir, the ones that
// form its package.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeParse       = "E008" // Term syntax error on the command line
	ErrCodeDatabase    = "E009" // Journal error

	// Declaration errors. Validation findings use the codes of
	// compiler.Validate (E101-E111).
	ErrCodeInductive = "E120" // Bad inductive declaration
	ErrCodeStructure = "E121" // Bad structure declaration
	ErrCodeConstant  = "E122" // Bad constant declaration or cyclic definitions
	ErrCodeCanonical = "E123" // Bad canonical instance

	// Problem outcomes.
	ErrCodeNotUnifiable = "E201"
	ErrCodeFuel         = "E202"
	ErrCodeInvariant    = "E203"
	ErrCodeTestFailed   = "E210"
	ErrCodeUnstable     = "E211"
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	head, _, _ := strings.Cut(field, ".")
	switch head {
	case "cue":
		return ErrCodeBuildFailed
	case "inductives":
		return ErrCodeInductive
	case "structures":
		return ErrCodeStructure
	case "constants":
		return ErrCodeConstant
	case "canonical":
		return ErrCodeCanonical
	default:
		return ErrCodeGeneric
	}
}
