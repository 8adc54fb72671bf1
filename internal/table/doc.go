// Package table implements the delimited text tables exchanged with operators.
//
// # Overview
//
// One table file holds the nodes of one type and is named after the
// package-qualified type: "model.Component.csv". The first record is the
// header: the fixed bookkeeping columns (see Bookkeeping) followed by one
// column per structural feature. The empty cell is null.
//
// # Dialect
//
// A Format fixes the field delimiter, an optional text delimiter used to
// enclose cells containing special characters, whether every non-null cell
// is enclosed, the character set, and the line separator. NewFormat rejects
// inconsistent settings up front.
//
// # Cells
//
// Multi-valued cells are written as "[v1, v2]" and split back on commas
// followed by optional blanks. An empty list is the null cell. Rows to be
// created carry a temporary identifier of the form "%name%".
//
// # Usage
//
//	f, err := table.NewFormat(table.Options{
//	    Delimiter: ';', Quote: '"', Charset: "UTF-8", LineSeparator: table.LF,
//	})
//	if err != nil {
//	    return err
//	}
//	err = table.AppendRecord(path, f, header, cells) // header written on first append
//	t, err := table.ReadFile(path, f)
package table
