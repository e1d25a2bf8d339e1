// Пакет favorites хранит набор избранных заявок в именованном блобе
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"DoeInteligente/internal/model"
)

// DefaultStorageName стабильное имя блоба с избранным
const DefaultStorageName = "doe-inteligente-favoritos"

// schemaVersion версия формата блоба
const schemaVersion = 1

// ErrNoBlob возвращается Persistence, если блоб с таким именем ещё не записан
var ErrNoBlob = errors.New("blob not found")

// Persistence адаптер хранения: читает и записывает именованный блоб.
// Read возвращает ErrNoBlob, если блоб отсутствует
type Persistence interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
}

// blob формат сохранённого состояния: {"state":{"favoritos":{...}},"version":1}
type blob struct {
	State struct {
		Favorites model.FavoritesSet `json:"favoritos"`
	} `json:"state"`
	Version int `json:"version"`
}

// Store набор избранного поверх Persistence.
// Каждая операция читает актуальный блоб; мьютекс сериализует изменения внутри процесса,
// между процессами действует правило "последняя запись побеждает"
type Store struct {
	p    Persistence
	name string
	mu   sync.Mutex
}

// NewStore создаёт Store; пустое name заменяется DefaultStorageName
func NewStore(p Persistence, name string) *Store {
	if name == "" {
		name = DefaultStorageName
	}
	return &Store{p: p, name: name}
}

func (s *Store) load(ctx context.Context) (model.FavoritesSet, error) {
	data, err := s.p.Read(ctx, s.name)
	if errors.Is(err, ErrNoBlob) {
		return model.FavoritesSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode favorites: %w", err)
	}
	if b.State.Favorites == nil {
		return model.FavoritesSet{}, nil
	}
	return b.State.Favorites, nil
}

func (s *Store) save(ctx context.Context, set model.FavoritesSet) error {
	var b blob
	b.State.Favorites = set
	b.Version = schemaVersion
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode favorites: %w", err)
	}
	if err := s.p.Write(ctx, s.name, data); err != nil {
		return fmt.Errorf("failed to write favorites: %w", err)
	}
	return nil
}

// Toggle инвертирует признак избранного для id (отсутствие -> true) и возвращает новое значение
func (s *Store) Toggle(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	set[id] = !set[id]
	if err := s.save(ctx, set); err != nil {
		return false, err
	}
	return set[id], nil
}

// IsFavorite сообщает, отмечена ли заявка; отсутствие ключа означает false
func (s *Store) IsFavorite(ctx context.Context, id string) (bool, error) {
	set, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return set[id], nil
}

// List возвращает отсортированные id заявок со значением true
func (s *Store) List(ctx context.Context) ([]string, error) {
	set, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(set))
	for id, fav := range set {
		if fav {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Snapshot возвращает текущий набор избранного для фильтра ленты
func (s *Store) Snapshot(ctx context.Context) (model.FavoritesSet, error) {
	return s.load(ctx)
}

// Clear очищает набор избранного
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, model.FavoritesSet{})
}
