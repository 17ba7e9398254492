package models

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// CustomSpinnerWriter remembers the last spinner frame so lines printed
// through CustomStdout can redraw it underneath themselves.
type CustomSpinnerWriter struct {
	currentSpinnerMsg string
	out               io.Writer
	lock              sync.Mutex
}

func NewCustomSpinnerWriter() *CustomSpinnerWriter {
	return &CustomSpinnerWriter{out: os.Stdout}
}

func (w *CustomSpinnerWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	n, err = w.out.Write(p)
	if err != nil {
		return n, err
	}

	w.currentSpinnerMsg = string(p)

	return len(p), nil
}

func (w *CustomSpinnerWriter) frame() string {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.currentSpinnerMsg
}

type CustomStdout struct {
	spinner *CustomSpinnerWriter
	out     io.Writer
	lock    sync.Mutex
}

func NewCustomStdout(spinner *CustomSpinnerWriter) *CustomStdout {
	return NewCustomStdoutTo(spinner, os.Stdout)
}

func NewCustomStdoutTo(spinner *CustomSpinnerWriter, out io.Writer) *CustomStdout {
	return &CustomStdout{spinner: spinner, out: out}
}

func (w *CustomStdout) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	n, err = fmt.Fprintf(w.out, "\033[2K\r%s", p)
	if err != nil {
		return n, err
	}

	nn, err := io.WriteString(w.out, w.spinner.frame())
	return n + nn, err
}

func (w *CustomStdout) Printf(format string, a ...any) (n int, err error) {
	return w.Write([]byte(fmt.Sprintf(format, a...)))
}
