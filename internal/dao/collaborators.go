package dao

import (
	"context"

	"propspace/space-portal/space-portal-backend/internal/registry"
)

// External collaborators of the orchestrator. The core never implements these;
// they are the seams where membership, governance, and payments plug in.

// Account is a DAO member record as the membership collaborator reports it.
type Account struct {
	ID      registry.AccountID `json:"id"`
	Balance uint64             `json:"balance"`
}

// AccountService is the membership collaborator: account records and balance
// queries live on its side of the boundary.
type AccountService interface {
	GetAccount(ctx context.Context, id registry.AccountID) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}

// ProposalState mirrors the governance collaborator's proposal lifecycle.
type ProposalState string

const (
	ProposalStateOpen      ProposalState = "open"
	ProposalStateAccepted  ProposalState = "accepted"
	ProposalStateRejected  ProposalState = "rejected"
	ProposalStateExecuting ProposalState = "executing"
	ProposalStateSucceeded ProposalState = "succeeded"
	ProposalStateFailed    ProposalState = "failed"
)

// Proposal is a governance record; tallying is the collaborator's concern.
type Proposal struct {
	ID          uint64             `json:"id"`
	TokenID     uint64             `json:"token_id"`
	Proposer    registry.AccountID `json:"proposer"`
	Proposition string             `json:"proposition"`
	State       ProposalState      `json:"state"`
}

// ProposalService is the governance collaborator.
type ProposalService interface {
	GetProposal(ctx context.Context, id uint64) (*Proposal, error)
	ListProposals(ctx context.Context, tokenID uint64) ([]Proposal, error)
}

// PaymentService is the payments collaborator. Transfers settle outside this
// system entirely; the interface exists so the seam is explicit.
type PaymentService interface {
	Transfer(ctx context.Context, from, to registry.AccountID, amount uint64) error
}
