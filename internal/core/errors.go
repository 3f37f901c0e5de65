package core

import (
	"errors"
	"fmt"
)

// Stage names the step of the upload → preview → validate → append flow an
// error came from.
type Stage string

const (
	StageUpload   Stage = "upload"
	StagePreview  Stage = "preview"
	StageValidate Stage = "validate"
	StageAppend   Stage = "append"
)

// StageError attributes an error to a stage. None of them are fatal: the
// session keeps its file and selection after a failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

var (
	ErrUnsupportedExtension = errors.New("unsupported file type: only .csv and .tsv files are accepted")
	ErrFileTooLarge         = errors.New("file too large")
	ErrEmptyFile            = errors.New("empty file")
	ErrNoFile               = errors.New("no file provided")
	ErrNoTarget             = errors.New("no target table selected")
	ErrInvalidSettings      = errors.New("invalid parse settings")
	ErrInvalidEncoding      = errors.New("encoding error")
	ErrRaggedRow            = errors.New("invalid csv: row has the wrong number of fields")
	ErrUnterminatedQuote    = errors.New("invalid csv: unterminated quoted field")
	ErrNotValidated         = errors.New("file has not passed validation for this table and settings")
	ErrRunInProgress        = errors.New("an append is already running for this session")
	ErrSessionNotFound      = errors.New("session not found")
	ErrTableNotFound        = errors.New("table not found")
)
