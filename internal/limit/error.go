package limit

import "fmt"

// UnknownStandardError is returned for a standard name that has no limit table
type UnknownStandardError struct {
	Standard string
}

func (e *UnknownStandardError) Error() string {
	return fmt.Sprintf("limit: unknown standard '%s' (known: %v)", e.Standard, Standards())
}

// UnknownUnitError is returned for a unit that has no column in the limit tables
type UnknownUnitError struct {
	Unit string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("limit: unknown unit '%s' (known: %v)", e.Unit, Units())
}
