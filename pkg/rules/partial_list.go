package rules

import (
	"encoding/json"
	"fmt"
)

// PartialList is one page of an enumeration. A nil Cursor marks the final
// page; otherwise it is passed back verbatim to fetch the next one.
type PartialList[T any] struct {
	List   []T     `json:"list"`
	Cursor *string `json:"cursor"`
}

func (p PartialList[T]) HasMore() bool {
	return p.Cursor != nil
}

// NextCursor returns the cursor for the following page, or "" on the last page.
func (p PartialList[T]) NextCursor() string {
	if p.Cursor == nil {
		return ""
	}
	return *p.Cursor
}

// Cursor returns a pointer to c, for building pages by hand.
func Cursor(c string) *string {
	return &c
}

// UnmarshalJSON requires the list member. A missing cursor is read as the
// final page.
func (p *PartialList[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		List   *[]T    `json:"list"`
		Cursor *string `json:"cursor"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("partial list: %w", err)
	}
	if raw.List == nil {
		return fmt.Errorf("partial list is missing %q", "list")
	}
	*p = PartialList[T]{List: *raw.List, Cursor: raw.Cursor}
	return nil
}
