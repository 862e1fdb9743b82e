package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jagga/internal/ledger"
	"jagga/internal/registry"
	"jagga/internal/request"
	"jagga/pkg/domain"
	"jagga/pkg/sentinel"
)

// PostgresStore persists parcels in the shared registry database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const parcelColumns = `
	id, title_no, owner_name, owner_wallet,
	province, district, municipality, ward, tole,
	size_bigha, size_kattha, size_dhur,
	document_hash, ledger_tx_ref, ledger_tx_state, token_ref,
	origin_request_id, citizen_tx_sig, officer_tx_sig, chief_tx_sig,
	status, created_at, updated_at`

func (s *PostgresStore) NextTitleNo(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('title_no_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("parcel store: next title number: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *registry.Parcel) error {
	var origin any
	if !p.OriginRequestID.IsNil() {
		origin = uuid.UUID(p.OriginRequestID)
	}
	state := "degraded"
	if p.LedgerTx.IsConfirmed() {
		state = "confirmed"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO parcels (
			id, title_no, owner_name, owner_wallet,
			province, district, municipality, ward, tole,
			size_bigha, size_kattha, size_dhur,
			document_hash, ledger_tx_ref, ledger_tx_state, token_ref,
			origin_request_id, citizen_tx_sig, officer_tx_sig, chief_tx_sig,
			status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		uuid.UUID(p.ID), p.TitleNo, p.OwnerName, p.OwnerWallet,
		p.Location.Province, p.Location.District, p.Location.Municipality,
		p.Location.Ward, p.Location.Tole,
		p.Size.Bigha, p.Size.Kattha, p.Size.Dhur,
		p.DocumentHash, p.LedgerTx.Value(), state, nullable(p.TokenRef),
		origin, nullable(p.CitizenTxSig), nullable(p.OfficerTxSig), nullable(p.ChiefTxSig),
		p.Status, p.CreatedAt, p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("parcel store: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ParcelID) (*registry.Parcel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+parcelColumns+` FROM parcels WHERE id = $1`, uuid.UUID(id))
	return scanParcel(row)
}

func (s *PostgresStore) FindByOriginRequest(ctx context.Context, reqID domain.RequestID) (*registry.Parcel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+parcelColumns+` FROM parcels WHERE origin_request_id = $1`, uuid.UUID(reqID))
	return scanParcel(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*registry.Parcel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+parcelColumns+` FROM parcels ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("parcel store: list: %w", err)
	}
	defer rows.Close()
	return scanParcels(rows)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerWallet string) ([]*registry.Parcel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+parcelColumns+` FROM parcels WHERE owner_wallet = $1 ORDER BY created_at DESC`,
		ownerWallet)
	if err != nil {
		return nil, fmt.Errorf("parcel store: list by owner: %w", err)
	}
	defer rows.Close()
	return scanParcels(rows)
}

func (s *PostgresStore) UpdateOwner(ctx context.Context, id domain.ParcelID, ownerName, ownerWallet string, tx ledger.Ref) error {
	state := "degraded"
	if tx.IsConfirmed() {
		state = "confirmed"
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE parcels
		SET owner_name = $1, owner_wallet = $2,
		    ledger_tx_ref = $3, ledger_tx_state = $4,
		    updated_at = now()
		WHERE id = $5`,
		ownerName, ownerWallet, tx.Value(), state, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("parcel store: update owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) BackfillProvenance(ctx context.Context, id domain.ParcelID, prov registry.Provenance) error {
	// COALESCE keeps populated signatures: backfill never overwrites.
	tag, err := s.pool.Exec(ctx, `
		UPDATE parcels
		SET citizen_tx_sig = COALESCE(citizen_tx_sig, NULLIF($1, '')),
		    officer_tx_sig = COALESCE(officer_tx_sig, NULLIF($2, '')),
		    chief_tx_sig   = COALESCE(chief_tx_sig,   NULLIF($3, ''))
		WHERE id = $4`,
		prov.CitizenTxSig, prov.OfficerTxSig, prov.ChiefTxSig, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("parcel store: backfill provenance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM parcels`).Scan(&n); err != nil {
		return 0, fmt.Errorf("parcel store: count: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParcel(row rowScanner) (*registry.Parcel, error) {
	var (
		p                                      registry.Parcel
		id                                     uuid.UUID
		province, district, municipality, tole sql.NullString
		ward, bigha, kattha, dhur              sql.NullInt64
		docHash, ledgerRef, ledgerState        sql.NullString
		tokenRef                               sql.NullString
		origin                                 *uuid.UUID
		citizenSig, officerSig, chiefSig       sql.NullString
	)
	err := row.Scan(
		&id, &p.TitleNo, &p.OwnerName, &p.OwnerWallet,
		&province, &district, &municipality, &ward, &tole,
		&bigha, &kattha, &dhur,
		&docHash, &ledgerRef, &ledgerState, &tokenRef,
		&origin, &citizenSig, &officerSig, &chiefSig,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("parcel store: scan: %w", err)
	}

	p.ID = domain.ParcelID(id)
	p.Location = request.Location{
		Province:     province.String,
		District:     district.String,
		Municipality: municipality.String,
		Ward:         int(ward.Int64),
		Tole:         tole.String,
	}
	p.Size = request.Size{Bigha: int(bigha.Int64), Kattha: int(kattha.Int64), Dhur: int(dhur.Int64)}
	p.DocumentHash = docHash.String
	p.LedgerTx = ledger.FromStored(ledgerRef.String, ledgerState.String == "confirmed")
	p.TokenRef = tokenRef.String
	if origin != nil {
		p.OriginRequestID = domain.RequestID(*origin)
	}
	p.CitizenTxSig = citizenSig.String
	p.OfficerTxSig = officerSig.String
	p.ChiefTxSig = chiefSig.String
	return &p, nil
}

func scanParcels(rows pgx.Rows) ([]*registry.Parcel, error) {
	var out []*registry.Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
