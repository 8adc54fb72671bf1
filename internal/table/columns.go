package table

import (
	"regexp"
	"strings"
	"time"
)

// Bookkeeping column names, in table order.
const (
	ColToCreate       = "To create"
	ColCreationDate   = "Creation date"
	ColCreationTime   = "Creation time"
	ColToUpdate       = "To update"
	ColLastUpdateDate = "Last update date"
	ColLastUpdateTime = "Last update time"
	ColToDelete       = "To delete"
	ColDeletionDate   = "Deletion date"
	ColDeletionTime   = "Deletion time"
	ColID             = "id"
)

// Bookkeeping lists the fixed leading columns of every table. The node
// identifier is part of it rather than an attribute column, so that it sits
// at the same position in every table.
var Bookkeeping = []string{
	ColToCreate,
	ColCreationDate,
	ColCreationTime,
	ColToUpdate,
	ColLastUpdateDate,
	ColLastUpdateTime,
	ColToDelete,
	ColDeletionDate,
	ColDeletionTime,
	ColID,
}

var bookkeeping = func() map[string]bool {
	m := make(map[string]bool, len(Bookkeeping))
	for _, c := range Bookkeeping {
		m[c] = true
	}
	return m
}()

// IsBookkeeping reports whether column is one of the fixed columns.
func IsBookkeeping(column string) bool {
	return bookkeeping[column]
}

// IsMarked reports whether a marker cell (To create, To update, To delete)
// is set. Any non-blank text counts.
func IsMarked(cell string) bool {
	return strings.TrimSpace(cell) != ""
}

// Stamp layouts.
const (
	DateLayout = "20060102"
	TimeLayout = "15:04:05.000Z07:00"
)

// Stamp renders t as a date cell and a time cell.
func Stamp(t time.Time) (date, clock string) {
	return t.Format(DateLayout), t.Format(TimeLayout)
}

var tempIDPattern = regexp.MustCompile(`^%.*%$`)

// IsTempID reports whether id is a temporary identifier of the form %...%.
func IsTempID(id string) bool {
	return len(id) >= 2 && tempIDPattern.MatchString(id)
}

// List cell syntax.
const (
	ListSeparator = ", "
	ListOpen      = "["
	ListClose     = "]"
)

var listSplit = regexp.MustCompile(`,[ \t]*`)

// EncodeList renders values as "[v1, v2]". An empty list is the null cell.
func EncodeList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return ListOpen + strings.Join(values, ListSeparator) + ListClose
}

// DecodeList splits a list cell. The surrounding brackets are optional so a
// hand-typed single value is accepted; "[]" and the null cell are empty.
func DecodeList(cell string) []string {
	s := cell
	if strings.HasPrefix(s, ListOpen) && strings.HasSuffix(s, ListClose) && len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return listSplit.Split(s, -1)
}
