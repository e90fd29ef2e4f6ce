package registry

import (
	"context"

	"go.uber.org/zap"
)

// Service owns the registry state and exposes every ledger operation. Mutating
// operations are custodian-gated; reads are public. The state is touched only
// under its mutex and never across a remote call, so each operation is atomic
// with respect to every other.
type Service struct {
	st     *state
	env    Environment
	logger *zap.Logger
}

// InitArgs seed the registry metadata. A nil/empty custodian set falls back to
// the initializing caller so the registry is never left custodian-less.
type InitArgs struct {
	Name       *string
	Symbol     *string
	Logo       *string
	Custodians []AccountID
}

// NewService creates a registry instance.
func NewService(ctx context.Context, env Environment, logger *zap.Logger, args InitArgs) *Service {
	st := newState()
	now := env.Now()
	st.metadata.Name = args.Name
	st.metadata.Symbol = args.Symbol
	st.metadata.Logo = args.Logo
	st.metadata.CreatedAt = now
	st.metadata.UpgradedAt = now
	for _, acct := range args.Custodians {
		st.metadata.Custodians[acct] = struct{}{}
	}
	if len(st.metadata.Custodians) == 0 {
		st.metadata.Custodians[env.Caller(ctx)] = struct{}{}
	}
	return &Service{st: st, env: env, logger: logger}
}

// authorize is the custodian guard. Every mutating entry point calls it before
// observing or mutating anything and short-circuits on failure with no side
// effects.
func (s *Service) authorize(caller AccountID) error {
	if _, ok := s.st.metadata.Custodians[caller]; !ok {
		return ErrNotCustodian
	}
	return nil
}

// CreateSpace registers the descriptor for an asset about to be tokenized.
func (s *Service) CreateSpace(ctx context.Context, pricePerUnit, totalUnits uint64) (uint64, error) {
	caller := s.env.Caller(ctx)
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	if totalUnits == 0 {
		return 0, otherErr("space must have at least one unit")
	}

	s.st.nextSpaceID++
	id := s.st.nextSpaceID
	s.st.spaces[id] = &Space{
		ID:             id,
		PricePerUnit:   pricePerUnit,
		TotalUnits:     totalUnits,
		UnitsAvailable: totalUnits,
	}
	s.st.stats.TotalSpaces++
	s.st.stats.TotalTransactions++

	s.logger.Info("space registered",
		zap.Uint64("space_id", id),
		zap.Uint64("total_units", totalUnits),
		zap.Uint64("price_per_unit", pricePerUnit))
	return id, nil
}

// Mint creates the token for a space. Identifiers are assigned from a monotonic
// counter and are never accepted from the caller; the ExistedNFT check can only
// trip on a corrupted import, but stays as a hard stop before any mutation.
func (s *Service) Mint(ctx context.Context, p MintParams) (uint64, error) {
	caller := s.env.Caller(ctx)
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return 0, err
	}

	space, ok := s.st.spaces[p.SpaceID]
	if !ok {
		return 0, otherErr("space %d does not exist", p.SpaceID)
	}
	// One live token per space: the balance table and the space pool settle
	// against each other, so a second concurrent token would double-spend the
	// pool.
	for _, existing := range s.st.tokens {
		if existing.SpaceID == p.SpaceID && !existing.Burned {
			return 0, otherErr("space %d already has a live token", p.SpaceID)
		}
	}
	if (p.TotalUnits != 0 && p.TotalUnits != space.TotalUnits) ||
		(p.PricePerUnit != 0 && p.PricePerUnit != space.PricePerUnit) {
		return 0, otherErr("mint terms disagree with space %d", p.SpaceID)
	}
	if space.UnitsAvailable == 0 {
		return 0, nftErr(ErrCodeUnitsNotAvailable)
	}
	if p.RequestedUnits > space.UnitsAvailable {
		return 0, nftErr(ErrCodeUnitsNotAvailable)
	}

	id := s.st.nextTokenID + 1
	if _, exists := s.st.tokens[id]; exists {
		return 0, nftErr(ErrCodeExistedNFT)
	}
	s.st.nextTokenID = id

	tok := &Token{
		ID:         id,
		SpaceID:    p.SpaceID,
		Ownership:  make(map[AccountID]uint64),
		Properties: append([]Property(nil), p.Properties...),
		Data:       append([]byte(nil), p.Data...),
		DataKind:   p.DataKind,
		MintedAt:   s.env.Now(),
		MintedBy:   p.Owner,
	}
	s.st.tokens[id] = tok
	if p.RequestedUnits > 0 {
		s.st.credit(tok, p.Owner, p.RequestedUnits)
		space.UnitsAvailable -= p.RequestedUnits
	}
	s.st.stats.TotalSupply++
	s.st.stats.TotalTransactions++

	s.logger.Info("token minted",
		zap.Uint64("token_id", id),
		zap.Uint64("space_id", p.SpaceID),
		zap.String("owner", string(p.Owner)),
		zap.Uint64("requested_units", p.RequestedUnits))
	return id, nil
}

// Allocate credits units of a token to a stakeholder out of the space's
// remaining pool.
func (s *Service) Allocate(ctx context.Context, tokenID uint64, stakeholder AccountID, units uint64) error {
	caller := s.env.Caller(ctx)
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}

	tok, ok := s.st.tokens[tokenID]
	if !ok {
		return nftErr(ErrCodeTokenNotFound)
	}
	if tok.Burned {
		return otherErr("token %d is burned", tokenID)
	}
	if units == 0 {
		return otherErr("cannot allocate zero units")
	}
	space := s.st.spaces[tok.SpaceID]
	if units > space.UnitsAvailable {
		return nftErr(ErrCodeUnitsNotAvailable)
	}

	s.st.credit(tok, stakeholder, units)
	space.UnitsAvailable -= units
	s.st.stats.TotalTransactions++

	s.logger.Info("units allocated",
		zap.Uint64("token_id", tokenID),
		zap.String("stakeholder", string(stakeholder)),
		zap.Uint64("units", units))
	return nil
}

// Trade moves units between two holders of the same token. The debit and
// credit happen in one locked step, so the transfer is balance-conserving or
// does not happen at all.
func (s *Service) Trade(ctx context.Context, tokenID uint64, sender, receiver AccountID, units uint64) error {
	caller := s.env.Caller(ctx)
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}

	tok, ok := s.st.tokens[tokenID]
	if !ok {
		return nftErr(ErrCodeTokenNotFound)
	}
	if tok.Burned {
		return otherErr("token %d is burned", tokenID)
	}
	if sender == receiver {
		return nftErr(ErrCodeSelfTransfer)
	}
	balance, holds := tok.Ownership[sender]
	if !holds {
		return nftErr(ErrCodeSenderNotOwner)
	}
	if units > balance {
		return nftErr(ErrCodeInsufficientUnits)
	}

	s.st.debit(tok, sender, units)
	s.st.credit(tok, receiver, units)
	s.st.stats.TotalTransactions++

	s.logger.Info("units traded",
		zap.Uint64("token_id", tokenID),
		zap.String("sender", string(sender)),
		zap.String("receiver", string(receiver)),
		zap.Uint64("units", units))
	return nil
}

// Burn retires a token. Burn is terminal: the balance table is cleared, the
// minter identity anonymized, and every later mutation of the token fails. A
// second burn fails cleanly and never decrements the supply twice.
func (s *Service) Burn(ctx context.Context, tokenID uint64) error {
	caller := s.env.Caller(ctx)
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}

	tok, ok := s.st.tokens[tokenID]
	if !ok {
		return nftErr(ErrCodeTokenNotFound)
	}
	if tok.Burned {
		return otherErr("token %d is already burned", tokenID)
	}

	for acct := range tok.Ownership {
		s.st.indexRemove(acct, tokenID)
	}
	tok.Ownership = make(map[AccountID]uint64)
	tok.Burned = true
	now := s.env.Now()
	tok.BurnedAt = &now
	burnedBy := caller
	tok.BurnedBy = &burnedBy
	tok.MintedBy = AnonymousAccount
	s.st.stats.TotalSupply--
	s.st.stats.TotalTransactions++

	s.logger.Info("token burned", zap.Uint64("token_id", tokenID), zap.String("burned_by", string(caller)))
	return nil
}

// SetName updates the registry name.
func (s *Service) SetName(ctx context.Context, name *string) error {
	return s.setMetadata(ctx, func(m *Metadata) { m.Name = name })
}

// SetSymbol updates the registry symbol.
func (s *Service) SetSymbol(ctx context.Context, symbol *string) error {
	return s.setMetadata(ctx, func(m *Metadata) { m.Symbol = symbol })
}

// SetLogo updates the registry logo.
func (s *Service) SetLogo(ctx context.Context, logo *string) error {
	return s.setMetadata(ctx, func(m *Metadata) { m.Logo = logo })
}

// SetCustodians replaces the custodian set. An empty set is rejected: a
// registry without custodians could never be mutated again.
func (s *Service) SetCustodians(ctx context.Context, custodians []AccountID) error {
	if len(custodians) == 0 {
		return otherErr("custodian set cannot be empty")
	}
	return s.setMetadata(ctx, func(m *Metadata) {
		m.Custodians = make(map[AccountID]struct{}, len(custodians))
		for _, acct := range custodians {
			m.Custodians[acct] = struct{}{}
		}
	})
}

func (s *Service) setMetadata(ctx context.Context, apply func(*Metadata)) error {
	caller := s.env.Caller(ctx)
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}
	apply(&s.st.metadata)
	return nil
}
