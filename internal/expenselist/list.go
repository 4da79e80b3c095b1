// Package expenselist keeps the hosted expense collection ordered by date,
// newest first. Every function returns a new slice and leaves its input
// untouched.
package expenselist

import "casaspese/internal/core"

// Insert places record in front of the first element whose date is on or
// before record's date, so a new record precedes existing ones of the same
// day. If no such element exists the record is appended.
func Insert(list []core.ExpenseRecord, record core.ExpenseRecord) []core.ExpenseRecord {
	at := len(list)
	for i, e := range list {
		if !e.Date.After(record.Date.Time) {
			at = i
			break
		}
	}
	out := make([]core.ExpenseRecord, 0, len(list)+1)
	out = append(out, list[:at]...)
	out = append(out, record)
	return append(out, list[at:]...)
}

// IndexOf returns the position of the record with the given ID, or -1.
func IndexOf(list []core.ExpenseRecord, id int64) int {
	for i, e := range list {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Remove drops the record with the given ID. A missing ID yields an
// unchanged copy.
func Remove(list []core.ExpenseRecord, id int64) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, 0, len(list))
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// Commit swaps the optimistic record tempID for the authoritative server
// record. The server record takes the temporary slot when it lands on the
// same calendar day; otherwise it is re-inserted at its ordered position.
// When the temporary record is already gone the server record is inserted,
// and a server ID already present is never duplicated.
func Commit(list []core.ExpenseRecord, tempID int64, server core.ExpenseRecord) []core.ExpenseRecord {
	if IndexOf(list, server.ID) >= 0 {
		return Remove(list, tempID)
	}
	i := IndexOf(list, tempID)
	if i >= 0 && list[i].Date.SameDay(server.Date) {
		out := make([]core.ExpenseRecord, len(list))
		copy(out, list)
		out[i] = server
		return out
	}
	return Insert(Remove(list, tempID), server)
}
