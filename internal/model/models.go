package model

import (
	"encoding/json"
	"math"
	"time"
)

// Urgency описывает приоритет solicitação (baixa, media, alta)
type Urgency string

const (
	UrgencyLow    Urgency = "baixa"
	UrgencyMedium Urgency = "media"
	UrgencyHigh   Urgency = "alta"
)

// Weight возвращает числовой вес срочности для сортировки: low=1, medium=2, high=3.
// Для неизвестного значения возвращается 0
func (u Urgency) Weight() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	}
	return 0
}

// Valid сообщает, является ли значение одной из трёх допустимых срочностей
func (u Urgency) Valid() bool {
	return u.Weight() > 0
}

// Статусы частичной доставки пожертвования
const (
	DonationReserved  = "reservado"
	DonationConfirmed = "confirmado"
	DonationDelivered = "entregue"
)

// PartialDonation фиксирует одну частичную доставку по конкретному пункту заявки
type PartialDonation struct {
	ID        string    `db:"id" json:"id"`
	DonorName string    `db:"donor_name" json:"doadorNome"`
	Quantity  int       `db:"quantity" json:"quantidade"`
	DonatedAt time.Time `db:"donated_at" json:"dataDoacao"`
	Status    string    `db:"status" json:"status"`
}

// RequestedItem представляет пункт заявки (таблица request_items)
type RequestedItem struct {
	Name            string            `db:"name" json:"nome"`
	QuantityNeeded  int               `db:"quantity_needed" json:"quantidade"`
	Unit            string            `db:"unit" json:"unidade,omitempty"`
	QuantityDonated int               `db:"quantity_donated" json:"quantidadeDoada"`
	Donations       []PartialDonation `db:"-" json:"doacoes,omitempty"`
}

// Remaining возвращает остаток, который ещё можно пожертвовать
func (i RequestedItem) Remaining() int {
	r := i.QuantityNeeded - i.QuantityDonated
	if r < 0 {
		return 0
	}
	return r
}

// DonationRequest представляет заявку НКО на пожертвование (таблица donation_requests)
type DonationRequest struct {
	ID          string          `db:"id" json:"id"`
	OrgID       string          `db:"ong_id" json:"ongId,omitempty"`
	OrgName     string          `db:"ong_nome" json:"ongNome"`
	Title       string          `db:"titulo" json:"titulo"`
	Items       []RequestedItem `db:"-" json:"itens"`
	Urgency     Urgency         `db:"urgencia" json:"urgencia"`
	Description string          `db:"descricao" json:"descricao,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"criadaEm"`
	UpdatedAt   *time.Time      `db:"updated_at" json:"dataAtualizacao,omitempty"`
	Shareable   bool            `db:"compartilhavel" json:"compartilhavel"`

	// производные поля, пересчитываются Refresh
	Progress       int `db:"-" json:"progresso"`
	TotalItems     int `db:"-" json:"totalItens"`
	CompletedItems int `db:"-" json:"itensCompletos"`
}

// ProgressPercent вычисляет прогресс заявки по текущему состоянию пунктов:
// round(100 * сумма пожертвованного / сумма необходимого), ограничено [0,100]
func (r DonationRequest) ProgressPercent() int {
	var needed, donated int
	for _, it := range r.Items {
		needed += it.QuantityNeeded
		donated += it.QuantityDonated
	}
	if needed <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(donated) / float64(needed)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// SortDate возвращает дату для сортировки: UpdatedAt, если задана, иначе CreatedAt
func (r DonationRequest) SortDate() time.Time {
	if r.UpdatedAt != nil {
		return *r.UpdatedAt
	}
	return r.CreatedAt
}

// Refresh пересчитывает производные поля Progress, TotalItems и CompletedItems
func (r *DonationRequest) Refresh() {
	r.Progress = r.ProgressPercent()
	r.TotalItems = len(r.Items)
	r.CompletedItems = 0
	for _, it := range r.Items {
		if it.QuantityDonated >= it.QuantityNeeded {
			r.CompletedItems++
		}
	}
}

// Item ищет пункт заявки по точному имени и возвращает его индекс или -1
func (r DonationRequest) Item(name string) int {
	for i, it := range r.Items {
		if it.Name == name {
			return i
		}
	}
	return -1
}

// Clone возвращает глубокую копию заявки, чтобы изменения копии не затрагивали хранилище
func (r DonationRequest) Clone() DonationRequest {
	c := r
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		c.UpdatedAt = &t
	}
	c.Items = make([]RequestedItem, len(r.Items))
	for i, it := range r.Items {
		c.Items[i] = it
		if it.Donations != nil {
			c.Items[i].Donations = append([]PartialDonation(nil), it.Donations...)
		}
	}
	return c
}

// FavoritesSet отображение id заявки -> признак избранного; отсутствие ключа означает false
type FavoritesSet map[string]bool

// DonationSubmission данные формы пожертвования (DoacaoFormData).
// Items отображает имя пункта в количество, которое донор хочет передать
type DonationSubmission struct {
	DonorName string         `json:"doadorNome"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"telefone,omitempty"`
	Items     map[string]int `json:"itens"`
	Notes     string         `json:"observacoes,omitempty"`
}

// ValidatedDonation проверенное пожертвование, готовое к передаче внешним получателям
type ValidatedDonation struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"solicitacaoId"`
	SubmittedAt time.Time `json:"criadaEm"`
	DonationSubmission
}

// Contact форма обратной связи (ContatoForm)
// Порядок полей задаёт порядок проверок
type Contact struct {
	Name    string `json:"nome" validate:"mintrim=2"`
	Email   string `json:"email" validate:"emailaddr"`
	Message string `json:"mensagem" validate:"mintrim=10"`
}

// DonorForm входные данные регистрации донора
type DonorForm struct {
	Name         string `json:"nome" validate:"mintrim=3"`
	Email        string `json:"email" validate:"emailaddr"`
	DonationType string `json:"tipoDoacao" validate:"required"`
	Phone        string `json:"telefone"`
}

// NGOForm входные данные регистрации НКО
type NGOForm struct {
	Name        string   `json:"nome" validate:"mintrim=3"`
	Email       string   `json:"email" validate:"emailaddr"`
	CNPJ        string   `json:"cnpj" validate:"cnpj"`
	Phone       string   `json:"telefone" validate:"mintrim=10"`
	Description string   `json:"descricao"`
	Causes      []string `json:"causas"`
}

// Donor зарегистрированный донор (Doador)
type Donor struct {
	ID           string    `json:"id"`
	Name         string    `json:"nome"`
	Email        string    `json:"email"`
	Phone        string    `json:"telefone,omitempty"`
	DonationType string    `json:"tipoDoacao"`
	CreatedAt    time.Time `json:"criadoEm"`
}

// Coordinates географические координаты НКО
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NGO организация (ONG)
type NGO struct {
	ID          string       `json:"id"`
	Name        string       `json:"nome"`
	Email       string       `json:"email"`
	Phone       string       `json:"telefone"`
	Address     string       `json:"endereco"`
	CNPJ        string       `json:"cnpj"`
	Description string       `json:"descricao"`
	Causes      []string     `json:"causas"`
	Coordinates *Coordinates `json:"coordenadas,omitempty"`
	Verified    bool         `json:"verificada"`
	CreatedAt   time.Time    `json:"criadaEm"`
}

// ShareLink текст и ссылка для функции "Compartilhar"
type ShareLink struct {
	Title string `json:"titulo"`
	Text  string `json:"texto"`
	URL   string `json:"url"`
}

// APIResponse общий конверт ответа API: {ok, data, error, message, errors}
type APIResponse struct {
	OK      bool              `json:"ok"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Event конверт события, публикуемого в NATS и сохраняемого consumer'ом в ClickHouse
type Event struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}
