package pairing

import (
	"context"
	"database/sql"
	"errors"
)

const roomIDPrefix = "pair:"

var (
	ErrNotAuthorized = errors.New("not a participant of this pair")
	ErrPairNotFound  = errors.New("pair request not found")
	ErrPairNotActive = errors.New("pair request not accepted")
)

// IPairingService is the boundary to the accept/reject pairing workflow.
// The relay core only ever calls Resolve and Lookup; the workflow itself
// (requests, emails, account CRUD) lives elsewhere.
type IPairingService interface {
	// Resolve authorizes identity against the pair request named by ref and
	// returns the deterministic room id for it.
	Resolve(ctx context.Context, identity, ref string) (string, error)
	// Lookup returns the last-known connection address for identity, used
	// as the directory fallback when no distributed binding store is
	// configured. Empty string means none recorded.
	Lookup(ctx context.Context, identity string) (string, error)
}

type pairingService struct {
	db *sql.DB
}

var _ IPairingService = (*pairingService)(nil)

func NewPairingService(db *sql.DB) IPairingService {
	return &pairingService{db: db}
}

func (svc *pairingService) Resolve(ctx context.Context, identity, ref string) (string, error) {
	const q = `SELECT requester_id, recipient_id, status
	             FROM pair_requests WHERE id = $1`

	var requester, recipient, status string
	err := svc.db.QueryRowContext(ctx, q, ref).Scan(&requester, &recipient, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPairNotFound
	}
	if err != nil {
		return "", err
	}

	if status != "ACCEPTED" {
		return "", ErrPairNotActive
	}
	if identity != requester && identity != recipient {
		return "", ErrNotAuthorized
	}
	return roomIDPrefix + ref, nil
}

func (svc *pairingService) Lookup(ctx context.Context, identity string) (string, error) {
	const q = `SELECT coalesce(last_conn_addr, '') FROM users WHERE id = $1`

	var addr string
	err := svc.db.QueryRowContext(ctx, q, identity).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return addr, nil
}

// IsDenial reports whether err is an authorization outcome (as opposed to
// an infrastructure failure).
func IsDenial(err error) bool {
	return errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrPairNotFound) ||
		errors.Is(err, ErrPairNotActive)
}
