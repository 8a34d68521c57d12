package schema

import (
	"fmt"
	"strings"

	"go.dedis.ch/ballot/election"
)

// Error is a single validation failure. An error without a field and without
// an index is a list-level error that applies to the section as a whole.
type Error struct {
	Section election.Section
	// List is the name of the sub-list when the section has more than one,
	// like the officers and the units of the polling section.
	List    string
	Index   int
	Field   string
	Message string
}

// Error implements error. It returns the path of the offending value followed
// by the message.
func (e Error) Error() string {
	return e.Path() + ": " + e.Message
}

// Path returns the location of the error, e.g. "candidates[2].id".
func (e Error) Path() string {
	path := e.Section.String()

	if e.List != "" {
		path += "." + e.List
	}

	if e.Index >= 0 {
		path += fmt.Sprintf("[%d]", e.Index)
	}

	if e.Field != "" {
		path += "." + e.Field
	}

	return path
}

// IsListLevel returns true when the error is not attached to an entry.
func (e Error) IsListLevel() bool {
	return e.Index < 0 && e.Field == ""
}

// Errors is the list of validation failures of one or several sections. It is
// never reduced to a single error as a user may need to fix several things at
// once.
type Errors []Error

// Valid returns true when the list is empty.
func (errs Errors) Valid() bool {
	return len(errs) == 0
}

// Err returns nil when the list is empty, otherwise the list as an error.
func (errs Errors) Err() error {
	if len(errs) == 0 {
		return nil
	}

	return errs
}

// Error implements error.
func (errs Errors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}

	return strings.Join(msgs, "; ")
}

// Section returns the errors that belong to the section.
func (errs Errors) Section(s election.Section) Errors {
	return errs.filter(func(e Error) bool { return e.Section == s })
}

// ListLevel returns the errors that are not attached to an entry.
func (errs Errors) ListLevel() Errors {
	return errs.filter(Error.IsListLevel)
}

// At returns the errors attached to the entry of the list at the given index.
func (errs Errors) At(list string, index int) Errors {
	return errs.filter(func(e Error) bool {
		return e.List == list && e.Index == index
	})
}

func (errs Errors) filter(keep func(Error) bool) Errors {
	var res Errors
	for _, e := range errs {
		if keep(e) {
			res = append(res, e)
		}
	}

	return res
}

// collector accumulates the errors of a section.
type collector struct {
	section election.Section
	errs    Errors
}

func newCollector(s election.Section) *collector {
	return &collector{section: s}
}

func (c *collector) list(format string, args ...interface{}) {
	c.entry("", -1, "", format, args...)
}

func (c *collector) field(field string, format string, args ...interface{}) {
	c.entry("", -1, field, format, args...)
}

func (c *collector) entry(list string, index int, field, format string, args ...interface{}) {
	c.errs = append(c.errs, Error{
		Section: c.section,
		List:    list,
		Index:   index,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}
