package engine

import (
	"fmt"
	"io"
)

// Message is a prompt shown to the user.
type Message struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Error bool   `json:"error,omitempty"`
}

// HeadlessApp is an Application without a window. It records prompts and,
// when Out is set, prints them. The CLI session simulator and tests use it.
type HeadlessApp struct {
	Document    string // active document path
	HostVersion string
	Out         io.Writer
	Messages    []Message
}

// ActiveDocumentPath implements Application.
func (a *HeadlessApp) ActiveDocumentPath() string { return a.Document }

// Version implements Application.
func (a *HeadlessApp) Version() string { return a.HostVersion }

// ShowMessage implements Application.
func (a *HeadlessApp) ShowMessage(title, text string) { a.record(Message{Title: title, Text: text}) }

// ShowError implements Application.
func (a *HeadlessApp) ShowError(title, text string) {
	a.record(Message{Title: title, Text: text, Error: true})
}

func (a *HeadlessApp) record(m Message) {
	a.Messages = append(a.Messages, m)
	if a.Out == nil {
		return
	}
	prefix := "info"
	if m.Error {
		prefix = "error"
	}
	_, _ = fmt.Fprintf(a.Out, "[%s] %s: %s\n", prefix, m.Title, m.Text)
}
