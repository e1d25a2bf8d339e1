package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"DoeInteligente/internal/model"
)

// ErrNotFound возвращается при отсутствии записи
var ErrNotFound = errors.New("record not found")

// querier общий интерфейс *sql.DB и *sql.Tx для чтения
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const requestColumns = `id, ong_id, ong_nome, titulo, urgencia, descricao, compartilhavel, created_at, updated_at`

// RequestRepository реализует доступ к таблицам donation_requests, request_items и partial_donations
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository создает новый репозиторий заявок
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// rowScanner общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(s rowScanner) (model.DonationRequest, error) {
	var (
		r         model.DonationRequest
		orgID     sql.NullString
		desc      sql.NullString
		urgency   string
		updatedAt sql.NullTime
	)
	err := s.Scan(&r.ID, &orgID, &r.OrgName, &r.Title, &urgency, &desc, &r.Shareable, &r.CreatedAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.OrgID = orgID.String
	r.Description = desc.String
	r.Urgency = model.Urgency(urgency)
	if updatedAt.Valid {
		t := updatedAt.Time
		r.UpdatedAt = &t
	}
	return r, nil
}

// List возвращает все заявки с пунктами и частичными пожертвованиями
func (r *RequestRepository) List(ctx context.Context) ([]model.DonationRequest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM donation_requests ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select donation requests: %w", err)
	}
	defer rows.Close()
	var requests []model.DonationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate donation requests: %w", err)
	}

	items, err := loadItems(ctx, r.db, "")
	if err != nil {
		return nil, err
	}
	for i := range requests {
		requests[i].Items = items[requests[i].ID]
		requests[i].Refresh()
	}
	return requests, nil
}

// Get возвращает заявку по id
func (r *RequestRepository) Get(ctx context.Context, id string) (*model.DonationRequest, error) {
	req, err := getRequest(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Update выполняет fn над заявкой внутри транзакции с блокировкой строки.
// Изменённые количества пунктов и новые частичные пожертвования записываются
// только если fn завершилась без ошибки
func (r *RequestRepository) Update(ctx context.Context, id string, fn func(*model.DonationRequest) error) (*model.DonationRequest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := getRequest(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	before := req.Clone()
	if err := fn(&req); err != nil {
		return nil, err
	}

	for i, it := range req.Items {
		if i >= len(before.Items) || before.Items[i].Name != it.Name {
			return nil, fmt.Errorf("items of request %s changed shape during update", id)
		}
		old := before.Items[i]
		if len(it.Donations) < len(old.Donations) {
			return nil, fmt.Errorf("partial donations of item %s cannot be removed", it.Name)
		}
		if it.QuantityDonated != old.QuantityDonated {
			_, err := tx.ExecContext(ctx, `UPDATE request_items SET quantity_donated=$1 WHERE request_id=$2 AND name=$3`,
				it.QuantityDonated, id, it.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to update item %s: %w", it.Name, err)
			}
		}
		// новые записи добавляются в конец списка пункта
		for _, d := range it.Donations[len(old.Donations):] {
			_, err := tx.ExecContext(ctx, `INSERT INTO partial_donations(id, request_id, item_name, donor_name, quantity, donated_at, status)
				VALUES($1, $2, $3, $4, $5, $6, $7)`,
				d.ID, id, it.Name, d.DonorName, d.Quantity, d.DonatedAt, d.Status)
			if err != nil {
				return nil, fmt.Errorf("failed to insert partial donation: %w", err)
			}
		}
	}
	if req.UpdatedAt != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE donation_requests SET updated_at=$1 WHERE id=$2`, *req.UpdatedAt, id); err != nil {
			return nil, fmt.Errorf("failed to touch donation request: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	req.Refresh()
	return &req, nil
}

func getRequest(ctx context.Context, q querier, id string, forUpdate bool) (model.DonationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM donation_requests WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	req, err := scanRequest(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return req, ErrNotFound
		}
		return req, fmt.Errorf("failed to get donation request: %w", err)
	}
	items, err := loadItems(ctx, q, id)
	if err != nil {
		return req, err
	}
	req.Items = items[id]
	req.Refresh()
	return req, nil
}

// loadItems читает пункты и частичные пожертвования, сгруппированные по request_id.
// Пустой requestID означает все заявки
func loadItems(ctx context.Context, q querier, requestID string) (map[string][]model.RequestedItem, error) {
	itemsQuery := `SELECT request_id, name, quantity_needed, unit, quantity_donated FROM request_items`
	donationsQuery := `SELECT request_id, item_name, id, donor_name, quantity, donated_at, status FROM partial_donations`
	var args []interface{}
	if requestID != "" {
		itemsQuery += ` WHERE request_id=$1`
		donationsQuery += ` WHERE request_id=$1`
		args = append(args, requestID)
	}
	itemsQuery += ` ORDER BY request_id, position`
	donationsQuery += ` ORDER BY donated_at, id`

	rows, err := q.QueryContext(ctx, itemsQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select request items: %w", err)
	}
	defer rows.Close()
	items := make(map[string][]model.RequestedItem)
	for rows.Next() {
		var (
			reqID string
			it    model.RequestedItem
			unit  sql.NullString
		)
		if err := rows.Scan(&reqID, &it.Name, &it.QuantityNeeded, &unit, &it.QuantityDonated); err != nil {
			return nil, fmt.Errorf("failed to scan request item: %w", err)
		}
		it.Unit = unit.String
		items[reqID] = append(items[reqID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate request items: %w", err)
	}

	drows, err := q.QueryContext(ctx, donationsQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select partial donations: %w", err)
	}
	defer drows.Close()
	for drows.Next() {
		var (
			reqID, itemName string
			d               model.PartialDonation
		)
		if err := drows.Scan(&reqID, &itemName, &d.ID, &d.DonorName, &d.Quantity, &d.DonatedAt, &d.Status); err != nil {
			return nil, fmt.Errorf("failed to scan partial donation: %w", err)
		}
		list := items[reqID]
		for i := range list {
			if list[i].Name == itemName {
				list[i].Donations = append(list[i].Donations, d)
				break
			}
		}
	}
	if err := drows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate partial donations: %w", err)
	}
	return items, nil
}
