// Пакет feed реализует фильтрацию и сортировку ленты заявок на пожертвование
package feed

import (
	"errors"
	"sort"
	"strings"

	"DoeInteligente/internal/model"
)

// SortKey поле сортировки ленты
type SortKey string

const (
	SortNone     SortKey = ""
	SortUrgency  SortKey = "urgencia"
	SortDate     SortKey = "data"
	SortProgress SortKey = "progresso"
)

// Direction направление сортировки
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

var (
	// ErrInvalidUrgency возвращается при неизвестном значении фильтра срочности
	ErrInvalidUrgency = errors.New("urgência inválida")
	// ErrInvalidSortKey возвращается при неизвестном поле сортировки
	ErrInvalidSortKey = errors.New("ordenação inválida")
	// ErrInvalidDirection возвращается при неизвестном направлении сортировки
	ErrInvalidDirection = errors.New("direção inválida")
)

// Criteria набор условий фильтрации и сортировки.
// Все фильтры объединяются по И. Favorites используется только при FavoritesOnly
type Criteria struct {
	Search        string
	Item          string
	Urgency       model.Urgency
	FavoritesOnly bool
	Favorites     model.FavoritesSet
	SortKey       SortKey
	Direction     Direction
}

// FilterAndSort возвращает новый упорядоченный срез заявок, удовлетворяющих criteria.
// Входной срез не изменяется; повторный вызов с теми же данными даёт тот же порядок
func FilterAndSort(requests []model.DonationRequest, c Criteria) []model.DonationRequest {
	term := strings.ToLower(strings.TrimSpace(c.Search))
	item := strings.ToLower(c.Item)

	out := make([]model.DonationRequest, 0, len(requests))
	for _, r := range requests {
		if term != "" && !matchesSearch(r, term) {
			continue
		}
		if item != "" && !hasItem(r, item) {
			continue
		}
		if c.Urgency != "" && r.Urgency != c.Urgency {
			continue
		}
		if c.FavoritesOnly && !c.Favorites[r.ID] {
			continue
		}
		out = append(out, r)
	}

	less := comparator(c.SortKey)
	if less == nil {
		return out
	}
	if c.Direction == Desc {
		// обратный компаратор сохраняет исходный порядок равных элементов
		sort.SliceStable(out, func(i, j int) bool { return less(out[j], out[i]) })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func matchesSearch(r model.DonationRequest, term string) bool {
	if strings.Contains(strings.ToLower(r.Title), term) || strings.Contains(strings.ToLower(r.OrgName), term) {
		return true
	}
	for _, it := range r.Items {
		if strings.Contains(strings.ToLower(it.Name), term) {
			return true
		}
	}
	return false
}

func hasItem(r model.DonationRequest, name string) bool {
	for _, it := range r.Items {
		if strings.ToLower(it.Name) == name {
			return true
		}
	}
	return false
}

func comparator(key SortKey) func(a, b model.DonationRequest) bool {
	switch key {
	case SortUrgency:
		return func(a, b model.DonationRequest) bool { return a.Urgency.Weight() < b.Urgency.Weight() }
	case SortDate:
		return func(a, b model.DonationRequest) bool { return a.SortDate().Before(b.SortDate()) }
	case SortProgress:
		return func(a, b model.DonationRequest) bool { return a.ProgressPercent() < b.ProgressPercent() }
	}
	return nil
}

// ItemTags возвращает отсортированный список уникальных имён пунктов в нижнем регистре
// (варианты для фильтра по пункту)
func ItemTags(requests []model.DonationRequest) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, r := range requests {
		for _, it := range r.Items {
			n := strings.ToLower(it.Name)
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			tags = append(tags, n)
		}
	}
	sort.Strings(tags)
	return tags
}

// ParseUrgency разбирает значение фильтра срочности; пустая строка означает "все"
func ParseUrgency(s string) (model.Urgency, error) {
	if s == "" {
		return "", nil
	}
	u := model.Urgency(s)
	if !u.Valid() {
		return "", ErrInvalidUrgency
	}
	return u, nil
}

// ParseSortKey разбирает поле сортировки; пустая строка оставляет исходный порядок
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortNone, SortUrgency, SortDate, SortProgress:
		return k, nil
	}
	return "", ErrInvalidSortKey
}

// ParseDirection разбирает направление сортировки; по умолчанию asc
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case "":
		return Asc, nil
	case Asc, Desc:
		return d, nil
	}
	return "", ErrInvalidDirection
}
