package submission

import (
	"casaspese/internal/core"
	"casaspese/internal/expenselist"
)

// Updater is a pure transformation of the expense collection.
type Updater func(prev []core.ExpenseRecord) []core.ExpenseRecord

// Host owns the expense collection and the modal. The coordinator never
// holds a reference to the collection; it only hands in transformations.
type Host interface {
	UpdateExpenses(fn Updater)
	OnClose()
}

type storeHost struct {
	store   *expenselist.Store
	onClose func()
}

// NewStoreHost adapts an expenselist.Store to Host. onClose may be nil.
func NewStoreHost(store *expenselist.Store, onClose func()) Host {
	return &storeHost{store: store, onClose: onClose}
}

func (h *storeHost) UpdateExpenses(fn Updater) {
	h.store.Update(fn)
}

func (h *storeHost) OnClose() {
	if h.onClose != nil {
		h.onClose()
	}
}
