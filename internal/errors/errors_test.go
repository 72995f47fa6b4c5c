package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSketchmillError_Error(t *testing.T) {
	err := New(ErrCategoryStorage, CodeUploadFailed, "upload failed")
	expected := "[STORAGE:UPLOAD_FAILED] upload failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestSketchmillError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestSketchmillError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryCatalog, CodeRecordFailed, "insert failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestSketchmillError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeUploadFailed, "first")
	err2 := New(ErrCategoryStorage, CodeUploadFailed, "second")
	err3 := New(ErrCategoryStorage, CodeDownloadFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryStorage, CodeWriteFailed, false},
		{ErrCategoryInput, CodeInputNotFound, false},
		{ErrCategoryInput, CodeMissingColumn, false},
		{ErrCategoryParse, CodeMalformedRow, false},
		{ErrCategorySchema, CodeAlreadyFinalized, false},
		{ErrCategoryCatalog, CodeRecordFailed, false},
		{ErrCategoryArchive, CodeBuildFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryInput, CodeMissingColumn, "no extra column")
	if GetCategory(err) != ErrCategoryInput {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryInput)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("plain error should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryInput, CodeMissingColumn, "no extra column")
	if GetCode(err) != CodeMissingColumn {
		t.Errorf("got %q, want %q", GetCode(err), CodeMissingColumn)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("plain error should return empty code")
	}
}

func TestGetCode_Wrapped(t *testing.T) {
	inner := New(ErrCategoryInput, CodeInputNotFound, "missing")
	outer := fmt.Errorf("run failed: %w", inner)
	if GetCode(outer) != CodeInputNotFound {
		t.Errorf("got %q, want %q through the chain", GetCode(outer), CodeInputNotFound)
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategorySchema, CodeAlreadyFinalized, "schema locked")
	detailed := err.WithDetails(map[string]interface{}{"column": "4688_CommandLine"})

	if detailed.Details["column"] != "4688_CommandLine" {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	in := NewInputError(CodeInputNotFound, "no such file")
	if in.Category != ErrCategoryInput || in.Code != CodeInputNotFound {
		t.Error("NewInputError mismatch")
	}

	p := NewParseError("bad quoting on row 12", cause)
	if p.Category != ErrCategoryParse || p.Code != CodeMalformedRow || !errors.Is(p, cause) {
		t.Error("NewParseError mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	c := NewCatalogError(CodeRecordFailed, "locked", cause)
	if c.Category != ErrCategoryCatalog {
		t.Error("NewCatalogError mismatch")
	}

	a := NewArchiveError(CodeBuildFailed, "checkpoint failed", cause)
	if a.Category != ErrCategoryArchive {
		t.Error("NewArchiveError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
