package service

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"DoeInteligente/internal/model"
)

// Сообщения об ошибках форм регистрации
const (
	MsgContactName   = "Nome deve ter pelo menos 2 caracteres"
	MsgDonorName     = "Nome deve ter pelo menos 3 caracteres"
	MsgNGOName       = "Nome da ONG deve ter pelo menos 3 caracteres"
	MsgInvalidEmail  = "E-mail inválido"
	MsgMessageLength = "Mensagem deve ter pelo menos 10 caracteres"
	MsgDonationType  = "Tipo de doação é obrigatório"
	MsgInvalidCNPJ   = "CNPJ inválido"
	MsgInvalidPhone  = "Telefone inválido"
	MsgContactSent   = "Mensagem enviada com sucesso! Retornaremos em breve."
	MsgDonorCreated  = "Doador cadastrado com sucesso!"
	MsgNGOCreated    = "ONG cadastrada com sucesso! Aguarde a verificação."
	cnpjDigits       = 14
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

// FormError ошибка проверки формы; Message отдаётся клиенту как есть
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string { return e.Message }

// сообщения по имени поля структуры для каждой формы
var (
	contactMessages = map[string]string{
		"Name":    MsgContactName,
		"Email":   MsgInvalidEmail,
		"Message": MsgMessageLength,
	}
	donorMessages = map[string]string{
		"Name":         MsgDonorName,
		"Email":        MsgInvalidEmail,
		"DonationType": MsgDonationType,
	}
	ngoMessages = map[string]string{
		"Name":  MsgNGOName,
		"Email": MsgInvalidEmail,
		"CNPJ":  MsgInvalidCNPJ,
		"Phone": MsgInvalidPhone,
	}
)

// newValidator регистрирует правила форм:
// mintrim=N длина без пробелов по краям не меньше N символов,
// emailaddr проверка адреса по упрощённому шаблону,
// cnpj ровно 14 цифр после удаления остальных символов
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("mintrim", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
	})
	_ = v.RegisterValidation("emailaddr", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
		digits := 0
		for _, r := range fl.Field().String() {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		return digits == cnpjDigits
	})
	return v
}

// idGenerator выдаёт строковые id из миллисекунд текущего времени, строго возрастающие в пределах процесса
type idGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (g *idGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}

// RegistrationService обрабатывает формы контакта, регистрации доноров и НКО.
// Записи не сохраняются: они логируются и публикуются событием
type RegistrationService struct {
	validate *validator.Validate
	pub      Publisher
	log      *zap.Logger
	ids      *idGenerator
	now      func() time.Time
}

// NewRegistrationService создаёт сервис регистрации
func NewRegistrationService(pub Publisher, log *zap.Logger) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		validate: newValidator(),
		pub:      pub,
		log:      log,
		ids:      &idGenerator{now: time.Now},
		now:      time.Now,
	}
}

// check возвращает первую ошибку в порядке объявления полей
func (s *RegistrationService) check(form interface{}, messages map[string]string) error {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	field := verrs[0].StructField()
	msg, ok := messages[field]
	if !ok {
		return err
	}
	return &FormError{Field: field, Message: msg}
}

func (s *RegistrationService) publish(kind string, payload interface{}) {
	if err := s.pub.PublishEvent(kind, payload); err != nil {
		s.log.Warn("failed to publish event", zap.String("kind", kind), zap.Error(err))
	}
}

// Contact проверяет сообщение формы "Fale conosco" и возвращает текст подтверждения
func (s *RegistrationService) Contact(c model.Contact) (string, error) {
	if err := s.check(c, contactMessages); err != nil {
		return "", err
	}
	msg := model.Contact{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
		Message: strings.TrimSpace(c.Message),
	}
	s.log.Info("contact message received", zap.String("nome", msg.Name), zap.String("email", msg.Email))
	s.publish(EventContact, msg)
	return MsgContactSent, nil
}

// RegisterDonor проверяет форму донора и возвращает созданную запись
func (s *RegistrationService) RegisterDonor(f model.DonorForm) (*model.Donor, string, error) {
	if err := s.check(f, donorMessages); err != nil {
		return nil, "", err
	}
	d := &model.Donor{
		ID:           s.ids.Next(),
		Name:         strings.TrimSpace(f.Name),
		Email:        strings.TrimSpace(f.Email),
		Phone:        strings.TrimSpace(f.Phone),
		DonationType: f.DonationType,
		CreatedAt:    s.now().UTC(),
	}
	s.log.Info("donor registered", zap.String("id", d.ID), zap.String("tipoDoacao", d.DonationType))
	s.publish(EventDonor, d)
	return d, MsgDonorCreated, nil
}

// RegisterNGO проверяет форму НКО и возвращает созданную запись, ожидающую верификации
func (s *RegistrationService) RegisterNGO(f model.NGOForm) (*model.NGO, string, error) {
	if err := s.check(f, ngoMessages); err != nil {
		return nil, "", err
	}
	causes := f.Causes
	if causes == nil {
		causes = []string{}
	}
	n := &model.NGO{
		ID:          s.ids.Next(),
		Name:        strings.TrimSpace(f.Name),
		Email:       strings.TrimSpace(f.Email),
		Phone:       strings.TrimSpace(f.Phone),
		CNPJ:        strings.TrimSpace(f.CNPJ),
		Description: strings.TrimSpace(f.Description),
		Causes:      causes,
		Address:     "",
		Verified:    false,
		CreatedAt:   s.now().UTC(),
	}
	s.log.Info("ngo registered", zap.String("id", n.ID), zap.String("cnpj", n.CNPJ))
	s.publish(EventNGO, n)
	return n, MsgNGOCreated, nil
}

// ListNGOs возвращает демонстрационный список НКО для карты
func (s *RegistrationService) ListNGOs() []model.NGO {
	return []model.NGO{
		{
			ID:          "1",
			Name:        "Casa da Esperança",
			Email:       "contato@casaesperanca.org",
			Phone:       "(86) 3215-4567",
			Address:     "Rua das Flores, 123 - Centro, Teresina - PI",
			CNPJ:        "12.345.678/0001-90",
			Description: "Cuidamos de crianças em situação de vulnerabilidade social.",
			Causes:      []string{"crianças", "educação"},
			Coordinates: &model.Coordinates{Lat: -5.0892, Lng: -42.8019},
			Verified:    true,
			CreatedAt:   time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "2",
			Name:        "Lar dos Idosos São José",
			Email:       "contato@larsaojose.org",
			Phone:       "(86) 3234-5678",
			Address:     "Av. Frei Serafim, 456 - Centro, Teresina - PI",
			CNPJ:        "98.765.432/0001-10",
			Description: "Acolhimento e cuidado para idosos em situação de abandono.",
			Causes:      []string{"idosos", "saúde"},
			Coordinates: &model.Coordinates{Lat: -5.0950, Lng: -42.7900},
			Verified:    true,
			CreatedAt:   time.Date(2018, 3, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "3",
			Name:        "Projeto Alimentar",
			Email:       "contato@projetoalimentar.org",
			Phone:       "(86) 3245-6789",
			Address:     "Rua Coelho Rodrigues, 789 - Fátima, Teresina - PI",
			CNPJ:        "11.222.333/0001-44",
			Description: "Distribuição de alimentos para famílias carentes.",
			Causes:      []string{"fome", "família"},
			Coordinates: &model.Coordinates{Lat: -5.1000, Lng: -42.7800},
			Verified:    true,
			CreatedAt:   time.Date(2019, 7, 10, 0, 0, 0, 0, time.UTC),
		},
	}
}
