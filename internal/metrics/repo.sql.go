package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketpulse/marketpulse/internal/platform/db"
	"github.com/marketpulse/marketpulse/internal/shared"
)

// Repository reads offers and sales and persists metrics in PostgreSQL.
// Sale payloads are stored as JSONB so each import pipeline's field names
// survive verbatim; normalization happens in Go, not in SQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const offerColumns = `id, integration_id, tsin, sku, title, stock_total, stock_on_way, selling_price, status_text`

func (r *Repository) ListOffers(ctx context.Context, integrationID string) ([]Offer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+offerColumns+`
FROM offers WHERE integration_id=$1 ORDER BY id ASC`, integrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	offers := []Offer{}
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func (r *Repository) GetOfferByTSIN(ctx context.Context, integrationID, tsin string) (Offer, error) {
	return r.getOffer(ctx, `SELECT `+offerColumns+`
FROM offers WHERE integration_id=$1 AND tsin=$2 LIMIT 1`, integrationID, tsin)
}

func (r *Repository) GetOfferBySKU(ctx context.Context, integrationID, sku string) (Offer, error) {
	return r.getOffer(ctx, `SELECT `+offerColumns+`
FROM offers WHERE integration_id=$1 AND sku=$2 LIMIT 1`, integrationID, sku)
}

func (r *Repository) getOffer(ctx context.Context, query, integrationID, key string) (Offer, error) {
	row := r.pool.QueryRow(ctx, query, integrationID, key)
	offer, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Offer{}, shared.ErrNotFound
	}
	return offer, err
}

// ListSales returns the raw JSONB payloads matching the offer under the given
// key-field variant. The field name is restricted to the known variants, so
// interpolating it into the expression is safe.
func (r *Repository) ListSales(ctx context.Context, integrationID string, field SaleKeyField, tsin string) ([]RawSaleRecord, error) {
	switch field {
	case FieldTSINID, FieldTSIN:
	default:
		return nil, fmt.Errorf("metrics: unknown sale key field %q", field)
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT payload
FROM marketplace_sales WHERE integration_id=$1 AND payload->>'%s'=$2`, field), integrationID, tsin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []RawSaleRecord{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec RawSaleRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("metrics: decode sale payload: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// WriteBatch upserts every update in one transaction using a pipelined batch:
// the whole batch applies or none of it does.
func (r *Repository) WriteBatch(ctx context.Context, integrationID string, updates []MetricsUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		payload, err := json.Marshal(u.Metrics)
		if err != nil {
			return fmt.Errorf("metrics: encode metrics for offer %d: %w", u.OfferID, err)
		}
		batch.Queue(`INSERT INTO offer_metrics (offer_id, integration_id, tsin, metrics, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (offer_id) DO UPDATE SET metrics=EXCLUDED.metrics, tsin=EXCLUDED.tsin, updated_at=NOW()`,
			u.OfferID, integrationID, u.TSIN, payload)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for range updates {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return translateWriteError(err)
			}
		}
		if err := results.Close(); err != nil {
			return translateWriteError(err)
		}
		return nil
	})
}

// translateWriteError maps an FK violation (offer deleted mid-run) to
// ErrNotFound so the orchestrator records a comprehensible batch error.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("metrics: offer vanished during run: %w", shared.ErrNotFound)
	}
	return fmt.Errorf("metrics: batch write: %w", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (Offer, error) {
	var offer Offer
	err := row.Scan(&offer.ID, &offer.IntegrationID, &offer.TSIN, &offer.SKU, &offer.Title,
		&offer.StockTotal, &offer.StockOnWay, &offer.SellingPrice, &offer.StatusText)
	return offer, err
}
