// Package xerrors provides the module's error-wrapping convention: a thin,
// Unwrap-preserving wrapper used in place of ad hoc fmt.Errorf("%w") chains.
package xerrors

import "errors"

// New creates a plain error, mirroring errors.New.
func New(text string) error {
	return errors.New(text)
}

// Wrap attaches msg as context in front of err. Returns nil if err is nil,
// and returns err unchanged if msg is empty.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if len(msg) == 0 {
		return err
	}
	return &wrapped{err: err, msg: msg}
}

const sep = ": "

type wrapped struct {
	err error
	msg string
}

func (w *wrapped) Error() string {
	if w.err == nil {
		return w.msg
	}
	return w.msg + sep + w.err.Error()
}

func (w *wrapped) Unwrap() error {
	if w.err == nil {
		return errors.New(w.msg)
	}
	return w.err
}
