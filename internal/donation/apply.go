package donation

import (
	"time"

	"github.com/google/uuid"

	"DoeInteligente/internal/model"
)

// Apply применяет проверенное пожертвование к заявке:
// увеличивает QuantityDonated затронутых пунктов, добавляет записи PartialDonation
// со статусом "reservado", выставляет UpdatedAt и пересчитывает прогресс.
// Количество пожертвованного никогда не превышает необходимое.
// Возвращает добавленные записи
func Apply(request *model.DonationRequest, v model.ValidatedDonation, now time.Time) []model.PartialDonation {
	added := make([]model.PartialDonation, 0, len(v.Items))
	// обходим пункты в порядке заявки, чтобы порядок записей был детерминированным
	for i := range request.Items {
		it := &request.Items[i]
		qty, ok := v.Items[it.Name]
		if !ok || qty <= 0 {
			continue
		}
		qty = Clamp(*it, qty)
		if qty == 0 {
			continue
		}
		it.QuantityDonated += qty
		pd := model.PartialDonation{
			ID:        uuid.NewString(),
			DonorName: v.DonorName,
			Quantity:  qty,
			DonatedAt: now,
			Status:    model.DonationReserved,
		}
		it.Donations = append(it.Donations, pd)
		added = append(added, pd)
	}
	if len(added) > 0 {
		t := now
		request.UpdatedAt = &t
	}
	request.Refresh()
	return added
}
