package engine

import "fmt"

// Dialog is an auxiliary window opened by an app through the engine.
type Dialog interface {
	Title() string
	Close() error
}

// DialogCloseError reports a dialog that could not be closed.
type DialogCloseError struct {
	Title string
	Err   error
}

func (e *DialogCloseError) Error() string {
	return fmt.Sprintf("cannot close dialog %s: %v", e.Title, e.Err)
}

func (e *DialogCloseError) Unwrap() error { return e.Err }

// ShowDialog records an opened dialog so CloseWindows can close it later.
func (e *Engine) ShowDialog(d Dialog) {
	e.log.Debug("Showing dialog", "title", d.Title())
	e.dialogs = append(e.dialogs, d)
}

// OpenDialogs returns the number of dialogs still tracked.
func (e *Engine) OpenDialogs() int { return len(e.dialogs) }

// CloseWindows closes every tracked dialog. A failure is logged and the
// remaining dialogs are still closed; dialogs that failed stay tracked.
func (e *Engine) CloseWindows() []error {
	open := e.dialogs
	e.dialogs = nil

	var errs []error
	for _, d := range open {
		title := d.Title()
		e.log.Debug("Closing dialog", "title", title)
		if err := closeDialog(d); err != nil {
			closeErr := &DialogCloseError{Title: title, Err: err}
			e.log.Error(closeErr.Error())
			errs = append(errs, closeErr)
			e.dialogs = append(e.dialogs, d)
		}
	}
	return errs
}

func closeDialog(d Dialog) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Close()
}
