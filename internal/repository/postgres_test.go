// Пакет repository содержит unit-тесты для слоя доступа к данным
package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"DoeInteligente/internal/donation"
	"DoeInteligente/internal/model"
)

var (
	requestCols  = []string{"id", "ong_id", "ong_nome", "titulo", "urgencia", "descricao", "compartilhavel", "created_at", "updated_at"}
	itemCols     = []string{"request_id", "name", "quantity_needed", "unit", "quantity_donated"}
	donationCols = []string{"request_id", "item_name", "id", "donor_name", "quantity", "donated_at", "status"}
)

func expectRequestS1(mock sqlmock.Sqlmock, query string, createdAt time.Time) {
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("s1", "3", "Projeto Alimentar", "Doação de Cestas Básicas", "alta", nil, true, createdAt, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT request_id, name, quantity_needed, unit, quantity_donated FROM request_items WHERE request_id=$1 ORDER BY request_id, position")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow("s1", "Arroz", 50, "kg", 20).
			AddRow("s1", "Feijão", 40, nil, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM partial_donations WHERE request_id=$1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(donationCols).
			AddRow("s1", "Arroz", "7f1c3c1e-0000-4000-8000-000000000001", "Ana", 20, createdAt, "confirmado"))
}

// TestGetRequest проверяет чтение заявки вместе с пунктами и частичными пожертвованиями
func TestGetRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRequestRepository(db)
	createdAt := time.Now()

	expectRequestS1(mock, "FROM donation_requests WHERE id=$1", createdAt)

	r, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "Projeto Alimentar", r.OrgName)
	require.Equal(t, model.UrgencyHigh, r.Urgency)
	require.Nil(t, r.UpdatedAt)
	require.Len(t, r.Items, 2)
	require.Equal(t, "kg", r.Items[0].Unit)
	require.Equal(t, "", r.Items[1].Unit)
	require.Len(t, r.Items[0].Donations, 1)
	require.Equal(t, "confirmado", r.Items[0].Donations[0].Status)
	// 20 / 90 = 22%
	require.Equal(t, 22, r.Progress)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetRequest_NotFound проверяет преобразование sql.ErrNoRows в ErrNotFound
func TestGetRequest_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM donation_requests WHERE id=$1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	_, err := repo.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetRequest_QueryError проверяет прокидку произвольной ошибки при SELECT
func TestGetRequest_QueryError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewRequestRepository(db)
	mockErr := errors.New("timeout")
	mock.ExpectQuery(regexp.QuoteMeta("FROM donation_requests WHERE id=$1")).
		WithArgs("s1").
		WillReturnError(mockErr)
	_, err := repo.Get(context.Background(), "s1")
	if err == nil || !strings.Contains(err.Error(), mockErr.Error()) {
		t.Errorf("expected query error, got %v", err)
	}
}

// TestListRequests проверяет сборку списка заявок из трёх запросов
func TestListRequests(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewRequestRepository(db)
	now := time.Now()
	updated := now.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM donation_requests ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow("s1", "3", "Projeto Alimentar", "Cestas", "alta", "desc", true, now, updated).
			AddRow("s2", nil, "Lar dos Idosos", "Higiene", "media", nil, false, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM request_items ORDER BY request_id, position")).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow("s1", "Arroz", 50, "kg", 50).
			AddRow("s2", "Sabonete", 50, "un", 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM partial_donations ORDER BY donated_at, id")).
		WillReturnRows(sqlmock.NewRows(donationCols))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "s1", list[0].ID)
	require.NotNil(t, list[0].UpdatedAt)
	require.Equal(t, 100, list[0].Progress)
	require.Equal(t, "", list[1].OrgID)
	require.False(t, list[1].Shareable)
	require.Len(t, list[1].Items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdate_AppliesDonation проверяет запись изменённых количеств и новых пожертвований в транзакции
func TestUpdate_AppliesDonation(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewRequestRepository(db)
	createdAt := time.Now()

	mock.ExpectBegin()
	expectRequestS1(mock, "FROM donation_requests WHERE id=$1 FOR UPDATE", createdAt)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE request_items SET quantity_donated=$1 WHERE request_id=$2 AND name=$3")).
		WithArgs(50, "s1", "Arroz").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO partial_donations")).
		WithArgs(sqlmock.AnyArg(), "s1", "Arroz", "Bruno", 30, sqlmock.AnyArg(), "reservado").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE donation_requests SET updated_at=$1 WHERE id=$2")).
		WithArgs(sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sub := model.DonationSubmission{DonorName: "Bruno", Items: map[string]int{"Arroz": 30}}
	r, err := repo.Update(context.Background(), "s1", func(r *model.DonationRequest) error {
		v, err := donation.Validate(*r, sub)
		if err != nil {
			return err
		}
		donation.Apply(r, *v, time.Now())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 50, r.Items[0].QuantityDonated)
	require.Len(t, r.Items[0].Donations, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdate_ValidationErrorRollsBack проверяет, что при ошибке fn ничего не записывается
func TestUpdate_ValidationErrorRollsBack(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	expectRequestS1(mock, "FROM donation_requests WHERE id=$1 FOR UPDATE", time.Now())
	mock.ExpectRollback()

	sub := model.DonationSubmission{DonorName: "Bruno", Items: map[string]int{"Arroz": 31}}
	_, err := repo.Update(context.Background(), "s1", func(r *model.DonationRequest) error {
		_, err := donation.Validate(*r, sub)
		return err
	})
	var ve *donation.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "Máximo disponível: 30", ve.Fields["Arroz"])
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdate_NotFound проверяет ErrNotFound для отсутствующей заявки
func TestUpdate_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM donation_requests WHERE id=$1 FOR UPDATE")).
		WithArgs("x").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "x", func(*model.DonationRequest) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdate_BeginError проверяет ошибку открытия транзакции
func TestUpdate_BeginError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	repo := NewRequestRepository(db)
	mock.ExpectBegin().WillReturnError(errors.New("begin failed"))
	_, err := repo.Update(context.Background(), "s1", func(*model.DonationRequest) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "begin failed") {
		t.Errorf("expected begin error, got %v", err)
	}
}
