// Пакет donation проверяет предложенные донором количества по остаткам заявки
// и применяет проверенное пожертвование к заявке
package donation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"DoeInteligente/internal/model"
)

// Ключи и сообщения ошибок полей формы
const (
	FieldDonorName = "doadorNome"
	FieldItems     = "itens"

	MsgDonorNameRequired = "Nome é obrigatório"
	MsgNoItemsSelected   = "Selecione pelo menos um item para doar"
	MsgInvalidQuantity   = "Quantidade inválida"
	MsgUnknownItem       = "Item não encontrado nesta solicitação"
)

// ValidationError содержит все ошибки полей формы пожертвования (поле -> сообщение)
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid donation: " + strings.Join(parts, "; ")
}

// MaxAvailableMessage формирует сообщение о превышении остатка
func MaxAvailableMessage(remaining int) string {
	return fmt.Sprintf("Máximo disponível: %d", remaining)
}

// Validate проверяет submission относительно текущего состояния request.
// Проверяются все правила сразу, ошибки не прерывают проверку:
//   - имя донора после trim не пустое
//   - выбран хотя бы один пункт с количеством > 0
//   - каждое количество лежит в диапазоне [0, остаток] и относится к пункту заявки
//
// При успехе возвращает ValidatedDonation, содержащий только выбранные пункты.
// Заявка не изменяется
func Validate(request model.DonationRequest, submission model.DonationSubmission) (*model.ValidatedDonation, error) {
	errs := make(map[string]string)

	if strings.TrimSpace(submission.DonorName) == "" {
		errs[FieldDonorName] = MsgDonorNameRequired
	}

	selected := make(map[string]int)
	for name, qty := range submission.Items {
		if qty < 0 {
			errs[name] = MsgInvalidQuantity
			continue
		}
		if qty > 0 {
			selected[name] = qty
		}
	}
	if len(selected) == 0 {
		errs[FieldItems] = MsgNoItemsSelected
	}

	for name, qty := range selected {
		idx := request.Item(name)
		if idx < 0 {
			errs[name] = MsgUnknownItem
			continue
		}
		if remaining := request.Items[idx].Remaining(); qty > remaining {
			errs[name] = MaxAvailableMessage(remaining)
		}
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	sub := submission
	sub.DonorName = strings.TrimSpace(submission.DonorName)
	sub.Items = selected
	return &model.ValidatedDonation{
		ID:                 uuid.NewString(),
		RequestID:          request.ID,
		SubmittedAt:        time.Now().UTC(),
		DonationSubmission: sub,
	}, nil
}

// FullSubmission строит форму "doar todos os itens": каждый пункт выбирается на весь остаток.
// Уже закрытые пункты пропускаются
func FullSubmission(request model.DonationRequest, donor model.DonationSubmission) model.DonationSubmission {
	sub := donor
	sub.Items = make(map[string]int, len(request.Items))
	for _, it := range request.Items {
		if r := it.Remaining(); r > 0 {
			sub.Items[it.Name] = r
		}
	}
	return sub
}

// Clamp ограничивает значение степпера диапазоном [0, остаток пункта]
func Clamp(item model.RequestedItem, qty int) int {
	if qty < 0 {
		return 0
	}
	if r := item.Remaining(); qty > r {
		return r
	}
	return qty
}
