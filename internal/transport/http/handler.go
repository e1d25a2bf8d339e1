package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"DoeInteligente/internal/donation"
	"DoeInteligente/internal/feed"
	"DoeInteligente/internal/model"
	"DoeInteligente/internal/repository"
	"DoeInteligente/internal/service"
)

// Сообщения ответов API
const (
	MsgInternalError   = "Erro interno do servidor"
	MsgNotFound        = "Solicitação não encontrada"
	MsgRouteNotFound   = "Rota não encontrada"
	MsgInvalidBody     = "Corpo da requisição inválido"
	MsgInvalidDonation = "Dados da doação inválidos"
	MsgInvalidFavorite = "Parâmetro favoritos inválido"
)

// maxBodyBytes ограничение размера тела запроса (10 MB)
const maxBodyBytes = 10 << 20

// RequestsService задаёт интерфейс ленты заявок, пожертвований и избранного для HTTP-слоя
type RequestsService interface {
	List(ctx context.Context, c feed.Criteria) ([]model.DonationRequest, error)
	Get(ctx context.Context, id string) (*model.DonationRequest, error)
	ItemTags(ctx context.Context) ([]string, error)
	Donate(ctx context.Context, id string, sub model.DonationSubmission) (*service.DonationResult, error)
	DonateAll(ctx context.Context, id string, donor model.DonationSubmission) (*service.DonationResult, error)
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	IsFavorite(ctx context.Context, id string) (bool, error)
	Favorites(ctx context.Context) ([]string, error)
	ClearFavorites(ctx context.Context) error
	Share(ctx context.Context, id string) (*model.ShareLink, error)
}

// RegistrationService задаёт интерфейс форм контакта и регистрации
type RegistrationService interface {
	Contact(c model.Contact) (string, error)
	RegisterDonor(f model.DonorForm) (*model.Donor, string, error)
	RegisterNGO(f model.NGOForm) (*model.NGO, string, error)
	ListNGOs() []model.NGO
}

// Handler содержит зависимости и реализует HTTP-эндпоинты API
type Handler struct {
	requests  RequestsService
	reg       RegistrationService
	log       *zap.Logger
	indexFile string
	ready     func(ctx context.Context) error
}

// Option настраивает Handler
type Option func(*Handler)

// WithIndexFile задаёт index.html, который отдаётся для маршрутов SPA
func WithIndexFile(path string) Option {
	return func(h *Handler) { h.indexFile = path }
}

// WithReadiness задаёт проверку готовности зависимостей для /readyz
func WithReadiness(fn func(ctx context.Context) error) Option {
	return func(h *Handler) { h.ready = fn }
}

// NewHandler создаёт новый HTTP Handler
func NewHandler(requests RequestsService, reg RegistrationService, log *zap.Logger, opts ...Option) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{requests: requests, reg: reg, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes регистрирует маршруты API.
// Статические пути регистрируются раньше параметризованных: mux выбирает первый подходящий маршрут
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Эндпоинты для проверки здоровья и готовности сервиса
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	r.HandleFunc("/readyz", h.Readyz).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/contato", h.Contact).Methods("POST")
	api.HandleFunc("/doador", h.RegisterDonor).Methods("POST")
	api.HandleFunc("/ong", h.RegisterNGO).Methods("POST")
	api.HandleFunc("/ongs", h.ListNGOs).Methods("GET")

	api.HandleFunc("/solicitacoes", h.ListRequests).Methods("GET")
	api.HandleFunc("/solicitacoes/itens", h.ItemTags).Methods("GET")
	api.HandleFunc("/solicitacoes/{id}", h.GetRequest).Methods("GET")
	api.HandleFunc("/solicitacoes/{id}/doacoes", h.Donate).Methods("POST")
	api.HandleFunc("/solicitacoes/{id}/doar-tudo", h.DonateAll).Methods("POST")
	api.HandleFunc("/solicitacoes/{id}/compartilhar", h.Share).Methods("GET")

	api.HandleFunc("/favoritos", h.ListFavorites).Methods("GET")
	api.HandleFunc("/favoritos", h.ClearFavorites).Methods("DELETE")
	api.HandleFunc("/favoritos/{id}", h.IsFavorite).Methods("GET")
	api.HandleFunc("/favoritos/{id}", h.ToggleFavorite).Methods("POST")
	api.NotFoundHandler = http.HandlerFunc(h.apiNotFound)

	// всё остальное отдаёт SPA
	r.PathPrefix("/").Methods("GET").HandlerFunc(h.SPA)
}

func writeJSON(w http.ResponseWriter, status int, resp model.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.APIResponse{OK: false, Error: msg})
}

// fail переводит ошибку сервиса в HTTP-ответ.
// Детали внутренних ошибок только логируются
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *donation.ValidationError
	var fe *service.FormError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, model.APIResponse{OK: false, Error: MsgInvalidDonation, Errors: ve.Fields})
	case errors.As(err, &fe):
		writeError(w, http.StatusBadRequest, fe.Message)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, MsgNotFound)
	case errors.Is(err, service.ErrNotShareable):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, MsgInternalError)
	}
}

// decode читает JSON-тело не больше maxBodyBytes
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, MsgInvalidBody)
		return false
	}
	return true
}

// Contact обрабатывает POST /api/contato
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req model.Contact
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.reg.Contact(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Message: msg})
}

// RegisterDonor обрабатывает POST /api/doador
func (h *Handler) RegisterDonor(w http.ResponseWriter, r *http.Request) {
	var req model.DonorForm
	if !decode(w, r, &req) {
		return
	}
	d, msg, err := h.reg.RegisterDonor(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: d, Message: msg})
}

// RegisterNGO обрабатывает POST /api/ong
func (h *Handler) RegisterNGO(w http.ResponseWriter, r *http.Request) {
	var req model.NGOForm
	if !decode(w, r, &req) {
		return
	}
	n, msg, err := h.reg.RegisterNGO(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: n, Message: msg})
}

// ListNGOs обрабатывает GET /api/ongs
func (h *Handler) ListNGOs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: h.reg.ListNGOs()})
}

// parseCriteria собирает условия ленты из query:
// busca, item, urgencia, favoritos (bool), ordenacao, direcao
func parseCriteria(r *http.Request) (feed.Criteria, string, bool) {
	q := r.URL.Query()
	c := feed.Criteria{Search: q.Get("busca"), Item: q.Get("item")}
	var err error
	if c.Urgency, err = feed.ParseUrgency(q.Get("urgencia")); err != nil {
		return c, err.Error(), false
	}
	if c.SortKey, err = feed.ParseSortKey(q.Get("ordenacao")); err != nil {
		return c, err.Error(), false
	}
	if c.Direction, err = feed.ParseDirection(q.Get("direcao")); err != nil {
		return c, err.Error(), false
	}
	if v := q.Get("favoritos"); v != "" {
		if c.FavoritesOnly, err = strconv.ParseBool(v); err != nil {
			return c, MsgInvalidFavorite, false
		}
	}
	return c, "", true
}

// ListRequests обрабатывает GET /api/solicitacoes
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	c, msg, ok := parseCriteria(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	list, err := h.requests.List(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: list})
}

// ItemTags обрабатывает GET /api/solicitacoes/itens
func (h *Handler) ItemTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.requests.ItemTags(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: tags})
}

// GetRequest обрабатывает GET /api/solicitacoes/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: req})
}

// Donate обрабатывает POST /api/solicitacoes/{id}/doacoes
func (h *Handler) Donate(w http.ResponseWriter, r *http.Request) {
	var sub model.DonationSubmission
	if !decode(w, r, &sub) {
		return
	}
	res, err := h.requests.Donate(r.Context(), mux.Vars(r)["id"], sub)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: res})
}

// DonateAll обрабатывает POST /api/solicitacoes/{id}/doar-tudo.
// Поле itens в теле игнорируется: выбирается весь остаток
func (h *Handler) DonateAll(w http.ResponseWriter, r *http.Request) {
	var donor model.DonationSubmission
	if !decode(w, r, &donor) {
		return
	}
	res, err := h.requests.DonateAll(r.Context(), mux.Vars(r)["id"], donor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: res})
}

// Share обрабатывает GET /api/solicitacoes/{id}/compartilhar
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	link, err := h.requests.Share(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: link})
}

// ListFavorites обрабатывает GET /api/favoritos
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := h.requests.Favorites(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: ids})
}

// ClearFavorites обрабатывает DELETE /api/favoritos
func (h *Handler) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	if err := h.requests.ClearFavorites(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true})
}

type favoriteState struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorito"`
}

// IsFavorite обрабатывает GET /api/favoritos/{id}
func (h *Handler) IsFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	on, err := h.requests.IsFavorite(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: favoriteState{ID: id, Favorite: on}})
}

// ToggleFavorite обрабатывает POST /api/favoritos/{id}
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	on, err := h.requests.ToggleFavorite(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{OK: true, Data: favoriteState{ID: id, Favorite: on}})
}

// SPA отдаёт index.html клиентского приложения для любого GET вне API
func (h *Handler) SPA(w http.ResponseWriter, r *http.Request) {
	if h.indexFile == "" {
		writeError(w, http.StatusNotFound, MsgRouteNotFound)
		return
	}
	if _, err := os.Stat(h.indexFile); err != nil {
		h.log.Error("index file unavailable", zap.String("path", h.indexFile), zap.Error(err))
		writeError(w, http.StatusInternalServerError, MsgInternalError)
		return
	}
	http.ServeFile(w, r, h.indexFile)
}

func (h *Handler) apiNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, MsgRouteNotFound)
}

// Healthz возвращает статус работы сервиса
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Readyz возвращает готовность сервиса
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.log.Warn("readiness check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
