// Package notify delivers user-facing messages: transient toasts and
// blocking alerts that wait for acknowledgement.
package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelPending Level = "pending"
	LevelError   Level = "error"
)

type Notifier interface {
	Info(message string)
	Success(message string)
	Pending(message string)
	Error(message string)

	// Alert blocks until the user acknowledges it or ctx ends.
	Alert(ctx context.Context, title, message string) error
	// Confirm blocks until the user answers yes or no.
	Confirm(ctx context.Context, title, message string) (bool, error)
}

// Terminal prints toasts to out and reads acknowledgements from in.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
	in  *bufio.Reader
	log *slog.Logger
}

func NewTerminal(out io.Writer, in io.Reader, log *slog.Logger) *Terminal {
	return &Terminal{out: out, in: bufio.NewReader(in), log: log}
}

func (t *Terminal) Info(message string)    { t.toast(LevelInfo, message) }
func (t *Terminal) Success(message string) { t.toast(LevelSuccess, message) }
func (t *Terminal) Pending(message string) { t.toast(LevelPending, message) }
func (t *Terminal) Error(message string)   { t.toast(LevelError, message) }

func (t *Terminal) toast(level Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%s] %s\n", strings.ToUpper(string(level)), message)
	t.log.Debug("notification", "level", level, "message", message)
}

func (t *Terminal) Alert(ctx context.Context, title, message string) error {
	t.mu.Lock()
	fmt.Fprintf(t.out, "\n== %s ==\n%s\nPress enter to continue.\n", title, message)
	t.mu.Unlock()

	_, err := t.readLine(ctx)
	return err
}

func (t *Terminal) Confirm(ctx context.Context, title, message string) (bool, error) {
	t.mu.Lock()
	fmt.Fprintf(t.out, "\n== %s ==\n%s [y/N] ", title, message)
	t.mu.Unlock()

	line, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Prompt prints label and returns the next input line without its newline.
func (t *Terminal) Prompt(ctx context.Context, label string) (string, error) {
	t.mu.Lock()
	fmt.Fprint(t.out, label)
	t.mu.Unlock()

	line, err := t.readLine(ctx)
	return strings.TrimRight(line, "\r\n"), err
}

// Printf writes a line of view output.
func (t *Terminal) Printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

// Message is one notification captured by a Recorder.
type Message struct {
	Level Level // empty for alerts
	Title string
	Text  string
}

// Recorder keeps every notification in memory. Confirm answers with
// ConfirmAnswer.
type Recorder struct {
	mu            sync.Mutex
	messages      []Message
	alerts        []Message
	ConfirmAnswer bool
}

func (r *Recorder) Info(message string)    { r.add(LevelInfo, message) }
func (r *Recorder) Success(message string) { r.add(LevelSuccess, message) }
func (r *Recorder) Pending(message string) { r.add(LevelPending, message) }
func (r *Recorder) Error(message string)   { r.add(LevelError, message) }

func (r *Recorder) add(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: message})
}

func (r *Recorder) Alert(_ context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, Message{Title: title, Text: message})
	return nil
}

func (r *Recorder) Confirm(_ context.Context, title, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, Message{Title: title, Text: message})
	return r.ConfirmAnswer, nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *Recorder) Alerts() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.alerts...)
}

// Levels lists the levels of recorded toasts in order.
func (r *Recorder) Levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Level, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Level
	}
	return out
}
