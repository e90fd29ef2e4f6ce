package registry

// Read-only lookups. These bypass the custodian guard — ownership and metadata
// are publicly readable — and always return cloned snapshots, never live
// references into the store.

// GetTokenMetadata returns the token record.
func (s *Service) GetTokenMetadata(tokenID uint64) (Token, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	tok, ok := s.st.tokens[tokenID]
	if !ok {
		return Token{}, nftErr(ErrCodeTokenNotFound)
	}
	return tok.clone(), nil
}

// OwnerOf returns the full balance table of a token. Empty after a burn.
func (s *Service) OwnerOf(tokenID uint64) (map[AccountID]uint64, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	tok, ok := s.st.tokens[tokenID]
	if !ok {
		return nil, nftErr(ErrCodeTokenNotFound)
	}
	owners := make(map[AccountID]uint64, len(tok.Ownership))
	for acct, units := range tok.Ownership {
		owners[acct] = units
	}
	return owners, nil
}

// BalanceOf returns the total units an account holds across all tokens.
func (s *Service) BalanceOf(account AccountID) (uint64, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	held, ok := s.st.owners[account]
	if !ok {
		return 0, nftErr(ErrCodeOwnerNotFound)
	}
	var total uint64
	for tokenID := range held {
		total += s.st.tokens[tokenID].Ownership[account]
	}
	return total, nil
}

// IsStakeholder reports whether the account holds units of the token.
func (s *Service) IsStakeholder(tokenID uint64, account AccountID) (bool, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	tok, ok := s.st.tokens[tokenID]
	if !ok {
		return false, nftErr(ErrCodeTokenNotFound)
	}
	_, holds := tok.Ownership[account]
	return holds, nil
}

// OwnerTokenIdentifiers returns the ids of every token the account holds.
func (s *Service) OwnerTokenIdentifiers(account AccountID) ([]uint64, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	held, ok := s.st.owners[account]
	if !ok {
		return nil, nftErr(ErrCodeOwnerNotFound)
	}
	ids := make([]uint64, 0, len(held))
	for tokenID := range held {
		ids = append(ids, tokenID)
	}
	return ids, nil
}

// OwnerTokenMetadata returns the token records for every holding of the account.
func (s *Service) OwnerTokenMetadata(account AccountID) ([]Token, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	held, ok := s.st.owners[account]
	if !ok {
		return nil, nftErr(ErrCodeOwnerNotFound)
	}
	tokens := make([]Token, 0, len(held))
	for tokenID := range held {
		tokens = append(tokens, s.st.tokens[tokenID].clone())
	}
	return tokens, nil
}

// GetSpace returns the asset descriptor.
func (s *Service) GetSpace(spaceID uint64) (Space, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	space, ok := s.st.spaces[spaceID]
	if !ok {
		return Space{}, otherErr("space %d not found", spaceID)
	}
	return *space, nil
}

// TotalSupply returns the count of non-burned tokens.
func (s *Service) TotalSupply() uint64 {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.stats.TotalSupply
}

// GetStats returns the aggregate counters.
func (s *Service) GetStats() Stats {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.stats
}

// GetMetadata returns the registry configuration.
func (s *Service) GetMetadata() Metadata {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.metadata.clone()
}
