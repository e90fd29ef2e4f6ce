package registry

import (
	"sync"
)

// state is the single per-instance store. Every entry point goes through the
// owning Service, which takes the mutex for the whole synchronous body of an
// operation and never holds it across I/O: callers observe linearizable state.
type state struct {
	mu sync.Mutex

	metadata Metadata
	tokens   map[uint64]*Token
	// owners is the reverse index: account -> set of token ids with a positive
	// balance. It is updated in the same locked step as any balance mutation.
	owners map[AccountID]map[uint64]struct{}
	spaces map[uint64]*Space
	stats  Stats

	// nextTokenID is monotonic for the registry's lifetime so identifiers are
	// never reused, even after a burn.
	nextTokenID uint64
	nextSpaceID uint64
}

func newState() *state {
	return &state{
		metadata: Metadata{Custodians: make(map[AccountID]struct{})},
		tokens:   make(map[uint64]*Token),
		owners:   make(map[AccountID]map[uint64]struct{}),
		spaces:   make(map[uint64]*Space),
	}
}

// indexInsert records that acct holds tokenID, bumping the unique-holder
// counter on the account's first holding anywhere.
func (st *state) indexInsert(acct AccountID, tokenID uint64) {
	held, ok := st.owners[acct]
	if !ok {
		held = make(map[uint64]struct{})
		st.owners[acct] = held
		st.stats.TotalUniqueHolders++
	}
	held[tokenID] = struct{}{}
}

// indexRemove drops the (acct, tokenID) pair, decrementing the unique-holder
// counter when the account's last holding disappears.
func (st *state) indexRemove(acct AccountID, tokenID uint64) {
	held, ok := st.owners[acct]
	if !ok {
		return
	}
	delete(held, tokenID)
	if len(held) == 0 {
		delete(st.owners, acct)
		st.stats.TotalUniqueHolders--
	}
}

// debit reduces acct's balance on tok, removing the zero entry and fixing the
// owner index in the same step.
func (st *state) debit(tok *Token, acct AccountID, units uint64) {
	remaining := tok.Ownership[acct] - units
	if remaining == 0 {
		delete(tok.Ownership, acct)
		st.indexRemove(acct, tok.ID)
	} else {
		tok.Ownership[acct] = remaining
	}
}

// credit increases acct's balance on tok, inserting and indexing as needed.
func (st *state) credit(tok *Token, acct AccountID, units uint64) {
	if _, held := tok.Ownership[acct]; !held {
		st.indexInsert(acct, tok.ID)
	}
	tok.Ownership[acct] += units
}
