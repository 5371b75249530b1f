package domain

import (
	"errors"
	"fmt"
)

// FieldError scopes a bad field value to a single applicant. It never aborts
// the whole run on its own; the engine's error policy decides.
type FieldError struct {
	AID    string
	Field  string
	Value  string
	Reason string
}

func (e FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("field %s: %s (value %q)", e.Field, e.Reason, e.Value)
}

// Is enables errors.Is matching on FieldError.
func (e FieldError) Is(target error) bool {
	_, ok := target.(FieldError)
	if ok {
		return true
	}
	_, ok = target.(*FieldError)
	return ok
}

// ErrField is the sentinel for single-applicant field errors.
var ErrField = FieldError{}

// UnmappedCodeError means a source code value has no entry in the mapping
// document. The transform for that applicant fails; other applicants proceed.
type UnmappedCodeError struct {
	Domain string
	Field  string
	Code   string
}

func (e UnmappedCodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("no mapping for %s/%s code %q", e.Domain, e.Field, e.Code)
	}
	return fmt.Sprintf("no mapping for %s code %q", e.Domain, e.Code)
}

func (e UnmappedCodeError) Is(target error) bool {
	_, ok := target.(UnmappedCodeError)
	if ok {
		return true
	}
	_, ok = target.(*UnmappedCodeError)
	return ok
}

var ErrUnmappedCode = UnmappedCodeError{}

// RejectionError carries the raw diagnostic text of a target-system 4xx-class
// refusal. Known text patterns are translated before this is built; everything
// else passes through verbatim.
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e RejectionError) Error() string {
	return fmt.Sprintf("target system rejected request (%d): %s", e.StatusCode, e.Body)
}

func (e RejectionError) Is(target error) bool {
	_, ok := target.(RejectionError)
	if ok {
		return true
	}
	_, ok = target.(*RejectionError)
	return ok
}

var ErrRejected = RejectionError{}

// CreationParseError means the creation endpoint answered success but the new
// identifier could not be extracted from the response body.
type CreationParseError struct {
	Body string
}

func (e CreationParseError) Error() string {
	return "unparseable creation response"
}

func (e CreationParseError) Is(target error) bool {
	_, ok := target.(CreationParseError)
	if ok {
		return true
	}
	_, ok = target.(*CreationParseError)
	return ok
}

var ErrCreationParse = CreationParseError{}

// ProfileNotFoundError means the target system has no academic record for an
// application that classified Active, so the writeback would report settled
// values that do not exist.
type ProfileNotFoundError struct {
	TargetID string
	Year     string
	Term     string
	Session  string
}

func (e ProfileNotFoundError) Error() string {
	return fmt.Sprintf("no academic record for %s in %s/%s/%s", e.TargetID, e.Year, e.Term, e.Session)
}

func (e ProfileNotFoundError) Is(target error) bool {
	_, ok := target.(ProfileNotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*ProfileNotFoundError)
	return ok
}

var ErrProfileNotFound = ProfileNotFoundError{}

// ErrRunBusy means another sync run holds the run lock.
var ErrRunBusy = errors.New("a sync run is already in progress")

// ErrNoApplications means a scoped query matched nothing; only the on-demand
// surface treats this as an error.
var ErrNoApplications = errors.New("no applications found; the application may not be submitted or is missing required fields")
