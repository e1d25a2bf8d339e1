package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"DoeInteligente/internal/donation"
	"DoeInteligente/internal/feed"
	"DoeInteligente/internal/model"
)

// RequestRepo определяет интерфейс хранилища заявок.
// Update вызывает fn над копией заявки и фиксирует изменения только если fn не вернула ошибку
type RequestRepo interface {
	List(ctx context.Context) ([]model.DonationRequest, error)
	Get(ctx context.Context, id string) (*model.DonationRequest, error)
	Update(ctx context.Context, id string, fn func(*model.DonationRequest) error) (*model.DonationRequest, error)
}

// Favorites определяет интерфейс хранилища избранного
type Favorites interface {
	Toggle(ctx context.Context, id string) (bool, error)
	IsFavorite(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context) (model.FavoritesSet, error)
	Clear(ctx context.Context) error
}

// Publisher публикует события во внешний брокер (NATS)
type Publisher interface {
	PublishEvent(kind string, payload interface{}) error
}

// Типы публикуемых событий
const (
	EventDonation = "doacao"
	EventContact  = "contato"
	EventDonor    = "doador"
	EventNGO      = "ong"
)

// ErrNotShareable возвращается при попытке поделиться заявкой с compartilhavel=false
var ErrNotShareable = errors.New("solicitação não pode ser compartilhada")

// DonationResult результат успешного пожертвования: проверенные данные и обновлённая заявка
type DonationResult struct {
	Donation *model.ValidatedDonation `json:"doacao"`
	Request  *model.DonationRequest   `json:"solicitacao"`
}

// RequestsService реализует ленту заявок, пожертвования и избранное:
// - фильтрация и сортировка ленты
// - проверка и применение пожертвований без частичной фиксации
// - публикация принятых пожертвований в брокер
type RequestsService struct {
	repo    RequestRepo
	favs    Favorites
	pub     Publisher
	log     *zap.Logger
	baseURL string
	now     func() time.Time
}

// NewRequestsService создаёт сервис ленты; baseURL используется в ссылках "Compartilhar"
func NewRequestsService(repo RequestRepo, favs Favorites, pub Publisher, log *zap.Logger, baseURL string) *RequestsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RequestsService{
		repo:    repo,
		favs:    favs,
		pub:     pub,
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// List возвращает ленту, отфильтрованную и отсортированную по c.
// Для фильтра по избранному подставляет текущий набор из хранилища, если он не передан
func (s *RequestsService) List(ctx context.Context, c feed.Criteria) ([]model.DonationRequest, error) {
	requests, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if c.FavoritesOnly && c.Favorites == nil {
		set, err := s.favs.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		c.Favorites = set
	}
	return feed.FilterAndSort(requests, c), nil
}

// Get возвращает заявку по id
func (s *RequestsService) Get(ctx context.Context, id string) (*model.DonationRequest, error) {
	return s.repo.Get(ctx, id)
}

// ItemTags возвращает варианты фильтра по пункту
func (s *RequestsService) ItemTags(ctx context.Context) ([]string, error) {
	requests, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return feed.ItemTags(requests), nil
}

// Donate проверяет частичное пожертвование и применяет его атомарно.
// При ошибках полей возвращается *donation.ValidationError, заявка не меняется
func (s *RequestsService) Donate(ctx context.Context, id string, sub model.DonationSubmission) (*DonationResult, error) {
	return s.donate(ctx, id, func(model.DonationRequest) model.DonationSubmission { return sub })
}

// DonateAll выбирает весь остаток каждого пункта заявки ("doar todos os itens")
func (s *RequestsService) DonateAll(ctx context.Context, id string, donor model.DonationSubmission) (*DonationResult, error) {
	return s.donate(ctx, id, func(r model.DonationRequest) model.DonationSubmission {
		return donation.FullSubmission(r, donor)
	})
}

func (s *RequestsService) donate(ctx context.Context, id string, build func(model.DonationRequest) model.DonationSubmission) (*DonationResult, error) {
	var validated *model.ValidatedDonation
	updated, err := s.repo.Update(ctx, id, func(r *model.DonationRequest) error {
		v, err := donation.Validate(*r, build(*r))
		if err != nil {
			return err
		}
		donation.Apply(r, *v, s.now().UTC())
		validated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("donation accepted",
		zap.String("request", id),
		zap.String("donation", validated.ID),
		zap.Int("progress", updated.Progress))
	// уведомление best-effort: ошибка брокера не отменяет принятое пожертвование
	if err := s.pub.PublishEvent(EventDonation, validated); err != nil {
		s.log.Warn("failed to publish donation event", zap.String("donation", validated.ID), zap.Error(err))
	}
	return &DonationResult{Donation: validated, Request: updated}, nil
}

// ToggleFavorite переключает избранное для существующей заявки и возвращает новое значение
func (s *RequestsService) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return false, err
	}
	return s.favs.Toggle(ctx, id)
}

// IsFavorite сообщает, отмечена ли заявка
func (s *RequestsService) IsFavorite(ctx context.Context, id string) (bool, error) {
	return s.favs.IsFavorite(ctx, id)
}

// Favorites возвращает id избранных заявок
func (s *RequestsService) Favorites(ctx context.Context) ([]string, error) {
	return s.favs.List(ctx)
}

// ClearFavorites очищает избранное
func (s *RequestsService) ClearFavorites(ctx context.Context) error {
	return s.favs.Clear(ctx)
}

// Share формирует текст и ссылку для "Compartilhar"
func (s *RequestsService) Share(ctx context.Context, id string) (*model.ShareLink, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Shareable {
		return nil, ErrNotShareable
	}
	return &model.ShareLink{
		Title: r.Title,
		Text:  fmt.Sprintf("%s — %s", r.Title, r.OrgName),
		URL:   fmt.Sprintf("%s/solicitacoes#%s", s.baseURL, r.ID),
	}, nil
}
