package donation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"DoeInteligente/internal/model"
)

func cestas() model.DonationRequest {
	return model.DonationRequest{
		ID:      "s1",
		OrgName: "Projeto Alimentar",
		Title:   "Doação de Cestas Básicas",
		Urgency: model.UrgencyHigh,
		Items: []model.RequestedItem{
			{Name: "Arroz", QuantityNeeded: 50, Unit: "kg", QuantityDonated: 20},
			{Name: "Feijão", QuantityNeeded: 40, Unit: "kg"},
			{Name: "Óleo", QuantityNeeded: 20, Unit: "L", QuantityDonated: 20},
		},
	}
}

// fieldErrors извлекает карту ошибок полей из ошибки Validate
func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "ожидалась ValidationError, получили %v", err)
	return ve.Fields
}

func TestValidate_ExceedsRemaining(t *testing.T) {
	_, err := Validate(cestas(), model.DonationSubmission{DonorName: "Ana", Items: map[string]int{"Arroz": 31}})
	fields := fieldErrors(t, err)
	require.Equal(t, "Máximo disponível: 30", fields["Arroz"])
	require.Len(t, fields, 1)
}

func TestValidate_ExactRemainingSucceeds(t *testing.T) {
	v, err := Validate(cestas(), model.DonationSubmission{DonorName: "  Ana ", Items: map[string]int{"Arroz": 30, "Feijão": 0}})
	require.NoError(t, err)
	require.Equal(t, "s1", v.RequestID)
	require.Equal(t, "Ana", v.DonorName)
	require.NotEmpty(t, v.ID)
	// нулевые количества не попадают в результат
	require.Equal(t, map[string]int{"Arroz": 30}, v.Items)
}

func TestValidate_AllZeroReportsItemsRegardlessOfName(t *testing.T) {
	zero := map[string]int{"Arroz": 0, "Feijão": 0}

	_, err := Validate(cestas(), model.DonationSubmission{DonorName: "Ana", Items: zero})
	fields := fieldErrors(t, err)
	require.Equal(t, MsgNoItemsSelected, fields[FieldItems])
	require.NotContains(t, fields, FieldDonorName)

	_, err = Validate(cestas(), model.DonationSubmission{DonorName: "", Items: zero})
	fields = fieldErrors(t, err)
	require.Equal(t, MsgNoItemsSelected, fields[FieldItems])
	require.Equal(t, MsgDonorNameRequired, fields[FieldDonorName])

	_, err = Validate(cestas(), model.DonationSubmission{DonorName: "Ana"})
	require.Contains(t, fieldErrors(t, err), FieldItems)
}

func TestValidate_CollectsEveryError(t *testing.T) {
	sub := model.DonationSubmission{
		DonorName: "   ",
		Items:     map[string]int{"Arroz": 31, "Óleo": 1, "Feijão": -2, "Café": 3},
	}
	_, err := Validate(cestas(), sub)
	fields := fieldErrors(t, err)
	require.Equal(t, map[string]string{
		FieldDonorName: MsgDonorNameRequired,
		"Arroz":        "Máximo disponível: 30",
		"Óleo":         "Máximo disponível: 0",
		"Feijão":       MsgInvalidQuantity,
		"Café":         MsgUnknownItem,
	}, fields)
	require.Contains(t, err.Error(), "Arroz: Máximo disponível: 30")
}

func TestValidate_ItemNameIsExact(t *testing.T) {
	_, err := Validate(cestas(), model.DonationSubmission{DonorName: "Ana", Items: map[string]int{"arroz": 1}})
	require.Equal(t, MsgUnknownItem, fieldErrors(t, err)["arroz"])
}

func TestValidate_DoesNotMutateRequest(t *testing.T) {
	r := cestas()
	_, err := Validate(r, model.DonationSubmission{DonorName: "Ana", Items: map[string]int{"Arroz": 10}})
	require.NoError(t, err)
	require.Equal(t, 20, r.Items[0].QuantityDonated)
}

func TestFullSubmission(t *testing.T) {
	r := cestas()
	sub := FullSubmission(r, model.DonationSubmission{DonorName: "Ana", Notes: "entrego sábado"})
	require.Equal(t, map[string]int{"Arroz": 30, "Feijão": 40}, sub.Items)
	require.Equal(t, "entrego sábado", sub.Notes)

	v, err := Validate(r, sub)
	require.NoError(t, err)
	Apply(&r, *v, time.Now())
	require.Equal(t, 100, r.ProgressPercent())

	// заявка закрыта: выбирать больше нечего
	_, err = Validate(r, FullSubmission(r, model.DonationSubmission{DonorName: "Ana"}))
	require.Contains(t, fieldErrors(t, err), FieldItems)
}

func TestClamp(t *testing.T) {
	it := model.RequestedItem{Name: "Arroz", QuantityNeeded: 50, QuantityDonated: 20}
	require.Equal(t, 0, Clamp(it, -5))
	require.Equal(t, 10, Clamp(it, 10))
	require.Equal(t, 30, Clamp(it, 31))
}

func TestApply(t *testing.T) {
	r := cestas()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	v := model.ValidatedDonation{
		RequestID:          "s1",
		DonationSubmission: model.DonationSubmission{DonorName: "Ana", Items: map[string]int{"Feijão": 10, "Arroz": 5}},
	}
	added := Apply(&r, v, now)

	require.Len(t, added, 2)
	// записи идут в порядке пунктов заявки
	require.Equal(t, 5, added[0].Quantity)
	require.Equal(t, 10, added[1].Quantity)
	require.Equal(t, model.DonationReserved, added[0].Status)
	require.Equal(t, 25, r.Items[0].QuantityDonated)
	require.Equal(t, 10, r.Items[1].QuantityDonated)
	require.Len(t, r.Items[1].Donations, 1)
	require.Equal(t, "Ana", r.Items[1].Donations[0].DonorName)
	require.NotNil(t, r.UpdatedAt)
	require.True(t, r.UpdatedAt.Equal(now))
	// (25 + 10 + 20) / 110 = 50%
	require.Equal(t, 50, r.Progress)
	require.Equal(t, 1, r.CompletedItems)
}

func TestApply_NeverExceedsNeeded(t *testing.T) {
	r := cestas()
	v := model.ValidatedDonation{DonationSubmission: model.DonationSubmission{DonorName: "Ana", Items: map[string]int{"Arroz": 500}}}
	Apply(&r, v, time.Now())
	require.Equal(t, 50, r.Items[0].QuantityDonated)
}
