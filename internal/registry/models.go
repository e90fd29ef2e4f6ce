package registry

import (
	"context"
	"time"
)

// AccountID is an opaque, equality-comparable account identifier. The registry
// never inspects its contents; it is whatever identity the auth layer vouches for.
type AccountID string

// AnonymousAccount replaces audit identities that must be forgotten (burn).
const AnonymousAccount AccountID = "anonymous"

// Environment abstracts the host facilities the ledger logic needs: a clock and
// the identity of the caller behind the current request. Production wires the
// real clock and the auth middleware; tests wire a static double.
type Environment interface {
	Now() time.Time
	Caller(ctx context.Context) AccountID
}

// Property is one free-form metadata entry on a token. Order is significant, so
// properties are carried as a slice, not a map.
type Property struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Space describes the asset a token fractionalizes: the unit price, the fixed
// unit pool, and how many units remain unallocated. UnitsAvailable only ever
// decreases, through Mint and Allocate.
type Space struct {
	ID             uint64 `json:"id"`
	PricePerUnit   uint64 `json:"price_per_unit"`
	TotalUnits     uint64 `json:"total_units"`
	UnitsAvailable uint64 `json:"units_available"`
}

// DataKind tells consumers how to interpret a token's attached data blob.
type DataKind string

const (
	// DataKindLink marks the blob as a reference to externally hosted content.
	DataKindLink DataKind = "link"
	// DataKindRaw marks the blob as inline content.
	DataKindRaw DataKind = "raw"
)

// Token is the on-ledger record of fractional ownership of one space.
//
// Ownership is the authoritative multi-owner balance table. Entries are unit
// counts and are always > 0; an account whose balance reaches zero is removed,
// never retained.
type Token struct {
	ID         uint64               `json:"id"`
	SpaceID    uint64               `json:"space_id"`
	Ownership  map[AccountID]uint64 `json:"ownership"`
	Properties []Property           `json:"properties"`
	Data       []byte               `json:"data,omitempty"`
	DataKind   DataKind             `json:"data_kind,omitempty"`
	Burned     bool                 `json:"burned"`
	BurnedAt   *time.Time           `json:"burned_at,omitempty"`
	BurnedBy   *AccountID           `json:"burned_by,omitempty"`
	MintedAt   time.Time            `json:"minted_at"`
	MintedBy   AccountID            `json:"minted_by"`
}

// clone returns a deep copy safe to hand to callers.
func (t *Token) clone() Token {
	cp := *t
	cp.Ownership = make(map[AccountID]uint64, len(t.Ownership))
	for acct, units := range t.Ownership {
		cp.Ownership[acct] = units
	}
	cp.Properties = append([]Property(nil), t.Properties...)
	cp.Data = append([]byte(nil), t.Data...)
	if t.BurnedAt != nil {
		at := *t.BurnedAt
		cp.BurnedAt = &at
	}
	if t.BurnedBy != nil {
		by := *t.BurnedBy
		cp.BurnedBy = &by
	}
	return cp
}

// Metadata is registry-level configuration. Custodians is non-empty after
// initialization.
type Metadata struct {
	Name       *string                `json:"name,omitempty"`
	Symbol     *string                `json:"symbol,omitempty"`
	Logo       *string                `json:"logo,omitempty"`
	Custodians map[AccountID]struct{} `json:"custodians"`
	CreatedAt  time.Time              `json:"created_at"`
	UpgradedAt time.Time              `json:"upgraded_at"`
}

func (m *Metadata) clone() Metadata {
	cp := *m
	cp.Custodians = make(map[AccountID]struct{}, len(m.Custodians))
	for acct := range m.Custodians {
		cp.Custodians[acct] = struct{}{}
	}
	return cp
}

// Stats are aggregate counters maintained incrementally by every mutation.
// They are never recomputed by scan on the request path; see audit.go for the
// diagnostic recomputation.
type Stats struct {
	TotalSupply        uint64 `json:"total_supply"`
	TotalUniqueHolders uint64 `json:"total_unique_holders"`
	TotalTransactions  uint64 `json:"total_transactions"`
	TotalSpaces        uint64 `json:"total_spaces"`
}

// MintParams are the custodian-supplied terms for minting a space's token.
// PricePerUnit and TotalUnits restate the descriptor's terms and must agree
// with it; RequestedUnits go to Owner immediately, zero leaves the balance
// table empty. Data is an optional opaque blob attached to the token, with
// DataKind saying whether it is a link or inline content.
type MintParams struct {
	Owner          AccountID  `json:"owner"`
	SpaceID        uint64     `json:"space_id"`
	Properties     []Property `json:"properties,omitempty"`
	Data           []byte     `json:"data,omitempty"`
	DataKind       DataKind   `json:"data_kind,omitempty"`
	PricePerUnit   uint64     `json:"price_per_unit"`
	TotalUnits     uint64     `json:"total_units"`
	RequestedUnits uint64     `json:"requested_units"`
}
