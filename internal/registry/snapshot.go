package registry

import "context"

// StableState is the export/import record used for instance upgrade
// continuity. The layout must stay stable across versions; evolving it is a
// separate concern and not handled here.
type StableState struct {
	Metadata    Metadata               `json:"metadata"`
	Tokens      []Token                `json:"tokens"`
	Owners      map[AccountID][]uint64 `json:"owners"`
	Spaces      []Space                `json:"spaces"`
	Stats       Stats                  `json:"stats"`
	NextTokenID uint64                 `json:"next_token_id"`
	NextSpaceID uint64                 `json:"next_space_id"`
}

// Export deep-copies the full registry state into a stable record.
func (s *Service) Export() StableState {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	out := StableState{
		Metadata:    s.st.metadata.clone(),
		Tokens:      make([]Token, 0, len(s.st.tokens)),
		Owners:      make(map[AccountID][]uint64, len(s.st.owners)),
		Spaces:      make([]Space, 0, len(s.st.spaces)),
		Stats:       s.st.stats,
		NextTokenID: s.st.nextTokenID,
		NextSpaceID: s.st.nextSpaceID,
	}
	for _, tok := range s.st.tokens {
		out.Tokens = append(out.Tokens, tok.clone())
	}
	for acct, held := range s.st.owners {
		ids := make([]uint64, 0, len(held))
		for id := range held {
			ids = append(ids, id)
		}
		out.Owners[acct] = ids
	}
	for _, space := range s.st.spaces {
		out.Spaces = append(out.Spaces, *space)
	}
	return out
}

// Import replaces the registry state with a previously exported record.
// Custodians only; the caller is checked against the custodian set in place
// before the swap. The record is validated before anything is replaced: a
// snapshot without custodians or whose owner index disagrees with the balance
// tables is rejected, leaving the current state untouched.
func (s *Service) Import(ctx context.Context, snap StableState) error {
	caller := s.env.Caller(ctx)
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}

	if len(snap.Metadata.Custodians) == 0 {
		return otherErr("snapshot has no custodians")
	}

	tokens := make(map[uint64]*Token, len(snap.Tokens))
	derived := make(map[AccountID]map[uint64]struct{})
	for i := range snap.Tokens {
		tok := snap.Tokens[i].clone()
		if _, dup := tokens[tok.ID]; dup {
			return otherErr("snapshot has duplicate token %d", tok.ID)
		}
		tokens[tok.ID] = &tok
		for acct, units := range tok.Ownership {
			if units == 0 {
				return otherErr("snapshot token %d has a zero-balance entry", tok.ID)
			}
			if derived[acct] == nil {
				derived[acct] = make(map[uint64]struct{})
			}
			derived[acct][tok.ID] = struct{}{}
		}
	}

	// The owner index travels with the record but is only accepted when it
	// matches what the balance tables imply.
	if len(snap.Owners) != len(derived) {
		return otherErr("snapshot owner index disagrees with balance tables")
	}
	for acct, ids := range snap.Owners {
		want := derived[acct]
		if len(ids) != len(want) {
			return otherErr("snapshot owner index disagrees with balance tables")
		}
		for _, id := range ids {
			if _, ok := want[id]; !ok {
				return otherErr("snapshot owner index disagrees with balance tables")
			}
		}
	}

	spaces := make(map[uint64]*Space, len(snap.Spaces))
	for i := range snap.Spaces {
		space := snap.Spaces[i]
		if space.UnitsAvailable > space.TotalUnits {
			return otherErr("snapshot space %d has more units available than exist", space.ID)
		}
		spaces[space.ID] = &space
	}

	s.st.metadata = snap.Metadata.clone()
	s.st.metadata.UpgradedAt = s.env.Now()
	s.st.tokens = tokens
	s.st.owners = derived
	s.st.spaces = spaces
	s.st.stats = snap.Stats
	s.st.nextTokenID = snap.NextTokenID
	s.st.nextSpaceID = snap.NextSpaceID
	return nil
}
