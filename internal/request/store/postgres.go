package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jagga/internal/request"
	"jagga/pkg/domain"
	"jagga/pkg/sentinel"
)

// PostgresStore persists requests in the shared registry database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const requestColumns = `
	id, request_type, status, submitter_wallet, submitter_name,
	province, district, municipality, ward, tole,
	size_bigha, size_kattha, size_dhur,
	target_parcel_id, recipient_wallet, recipient_name,
	citizen_fee_proof, officer_fee_proof, chief_fee_proof,
	token_escrow_ref, reconciliation_state, created_at`

func (s *PostgresStore) Create(ctx context.Context, req *request.Request) error {
	var target any
	if !req.TargetParcelID.IsNil() {
		target = uuid.UUID(req.TargetParcelID)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO requests (
			id, request_type, status, submitter_wallet, submitter_name,
			province, district, municipality, ward, tole,
			size_bigha, size_kattha, size_dhur,
			target_parcel_id, recipient_wallet, recipient_name,
			citizen_fee_proof, token_escrow_ref, reconciliation_state, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		uuid.UUID(req.ID), string(req.Type), string(req.Status),
		req.SubmitterWallet, req.SubmitterName,
		req.Location.Province, req.Location.District, req.Location.Municipality,
		req.Location.Ward, req.Location.Tole,
		req.Size.Bigha, req.Size.Kattha, req.Size.Dhur,
		target, nullable(req.RecipientWallet), nullable(req.RecipientName),
		req.CitizenFeeProof, nullable(req.TokenEscrowRef),
		string(req.ReconciliationState), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("request store: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.RequestID) (*request.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, uuid.UUID(id))
	return scanRequest(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*request.Request, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("request store: list: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PostgresStore) ApplyTransition(ctx context.Context, id domain.RequestID, upd TransitionUpdate) (*request.Request, error) {
	proofColumn := "officer_fee_proof"
	if upd.Next == request.StatusApproved || upd.Next == request.StatusRejected {
		proofColumn = "chief_fee_proof"
	}

	reconcile := ""
	if upd.MarkReconcilePending {
		reconcile = `, reconciliation_state = 'pending'`
	}

	// COALESCE keeps an already-set proof: the fee-proof fields are
	// append-only. The status predicate makes the advance a compare-and-set.
	query := fmt.Sprintf(`
		UPDATE requests
		SET status = $1, %s = COALESCE(%s, $2)%s
		WHERE id = $3 AND status = $4
		RETURNING `+requestColumns, proofColumn, proofColumn, reconcile)

	row := s.pool.QueryRow(ctx, query,
		string(upd.Next), upd.Proof, uuid.UUID(id), string(upd.Expected))
	req, err := scanRequest(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Zero rows: distinguish a missing request from a lost race.
		if _, findErr := s.FindByID(ctx, id); findErr == nil {
			return nil, sentinel.ErrInvalidState
		}
		return nil, sentinel.ErrNotFound
	}
	return req, err
}

func (s *PostgresStore) SetReconciliationState(ctx context.Context, id domain.RequestID, state request.ReconciliationState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requests SET reconciliation_state = $1 WHERE id = $2`,
		string(state), uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("request store: set reconciliation state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUnreconciled(ctx context.Context) ([]*request.Request, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE status IN ('approved','rejected')
		  AND reconciliation_state IN ('pending','failed')
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("request store: list unreconciled: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PostgresStore) LatestApprovedRegistration(ctx context.Context, wallet, name string) (*request.Request, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE status = 'approved' AND request_type = 'registration'
		  AND submitter_wallet = $1 AND submitter_name = $2
		ORDER BY created_at DESC
		LIMIT 1`, wallet, name)
	return scanRequest(row)
}

func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'proposed'),
			count(*) FILTER (WHERE status = 'approved'),
			count(*) FILTER (WHERE status = 'pending' AND request_type = 'registration'),
			count(*) FILTER (WHERE status = 'pending' AND request_type = 'transfer')
		FROM requests`).
		Scan(&c.Pending, &c.Proposed, &c.Approved, &c.PendingRegistrations, &c.PendingTransfers)
	if err != nil {
		return Counts{}, fmt.Errorf("request store: counts: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*request.Request, error) {
	var (
		req                                    request.Request
		id                                     uuid.UUID
		reqType, status, reconcile             string
		province, district, municipality, tole sql.NullString
		ward, bigha, kattha, dhur              sql.NullInt64
		targetParcel                           *uuid.UUID
		recipientWallet, recipientName         sql.NullString
		officerProof, chiefProof, escrowRef    sql.NullString
	)
	err := row.Scan(
		&id, &reqType, &status, &req.SubmitterWallet, &req.SubmitterName,
		&province, &district, &municipality, &ward, &tole,
		&bigha, &kattha, &dhur,
		&targetParcel, &recipientWallet, &recipientName,
		&req.CitizenFeeProof, &officerProof, &chiefProof,
		&escrowRef, &reconcile, &req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("request store: scan: %w", err)
	}

	req.ID = domain.RequestID(id)
	req.Type = request.Type(reqType)
	req.Status = request.Status(status)
	req.Location = request.Location{
		Province:     province.String,
		District:     district.String,
		Municipality: municipality.String,
		Ward:         int(ward.Int64),
		Tole:         tole.String,
	}
	req.Size = request.Size{Bigha: int(bigha.Int64), Kattha: int(kattha.Int64), Dhur: int(dhur.Int64)}
	if targetParcel != nil {
		req.TargetParcelID = domain.ParcelID(*targetParcel)
	}
	req.RecipientWallet = recipientWallet.String
	req.RecipientName = recipientName.String
	req.OfficerFeeProof = officerProof.String
	req.ChiefFeeProof = chiefProof.String
	req.TokenEscrowRef = escrowRef.String
	req.ReconciliationState = request.ReconciliationState(reconcile)
	return &req, nil
}

func scanRequests(rows pgx.Rows) ([]*request.Request, error) {
	var out []*request.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
