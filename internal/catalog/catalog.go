// Package catalog описывает тарифы и множители цены по числу пользователей.
// Каталог неизменяем: он создаётся один раз при старте и передаётся явно.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidSelection неизвестный тариф или число пользователей.
var ErrInvalidSelection = errors.New("invalid selection")

// Plan тариф каталога.
type Plan struct {
	ID        string
	Name      string
	Days      int
	BasePrice float64
}

// Catalog набор тарифов и таблица множителей.
type Catalog struct {
	plans       []Plan
	byID        map[string]Plan
	multipliers map[int]float64
	tiers       []int
}

// New создаёт каталог. Порядок plans сохраняется для отображения.
func New(plans []Plan, multipliers map[int]float64) (*Catalog, error) {
	if len(plans) == 0 || len(multipliers) == 0 {
		return nil, fmt.Errorf("catalog: plans and multipliers must not be empty")
	}
	c := &Catalog{
		plans:       make([]Plan, 0, len(plans)),
		byID:        make(map[string]Plan, len(plans)),
		multipliers: make(map[int]float64, len(multipliers)),
	}
	for _, p := range plans {
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate plan %q", p.ID)
		}
		if p.Days <= 0 || p.BasePrice < 0 {
			return nil, fmt.Errorf("catalog: invalid plan %q", p.ID)
		}
		c.plans = append(c.plans, p)
		c.byID[p.ID] = p
	}
	for n, m := range multipliers {
		if n <= 0 || m <= 0 {
			return nil, fmt.Errorf("catalog: invalid tier %d", n)
		}
		c.multipliers[n] = m
		c.tiers = append(c.tiers, n)
	}
	sort.Ints(c.tiers)
	return c, nil
}

// Default каталог, который продаёт бот.
func Default() *Catalog {
	c, err := New(
		[]Plan{
			{ID: "10gb", Name: "10 گیگابایت", Days: 7, BasePrice: 5},
			{ID: "20gb", Name: "20 گیگابایت", Days: 15, BasePrice: 9},
			{ID: "50gb", Name: "50 گیگابایت", Days: 30, BasePrice: 20},
		},
		map[int]float64{1: 1.0, 2: 1.8, 3: 2.5, 4: 3.2, 10: 6.0, 100: 25.0},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Plan возвращает тариф по идентификатору.
func (c *Catalog) Plan(id string) (Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: unknown plan %q", ErrInvalidSelection, id)
	}
	return p, nil
}

// Plans тарифы в порядке каталога.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Tiers доступные варианты числа пользователей по возрастанию.
func (c *Catalog) Tiers() []int {
	out := make([]int, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// HasTier сообщает, есть ли такой вариант числа пользователей.
func (c *Catalog) HasTier(n int) bool {
	_, ok := c.multipliers[n]
	return ok
}

// Price цена тарифа для числа пользователей userCount, округлённая до двух знаков
// по правилу half away from zero.
func (c *Catalog) Price(planID string, userCount int) (float64, error) {
	p, err := c.Plan(planID)
	if err != nil {
		return 0, err
	}
	m, ok := c.multipliers[userCount]
	if !ok {
		return 0, fmt.Errorf("%w: unknown tier %d", ErrInvalidSelection, userCount)
	}
	return Round2(p.BasePrice * m), nil
}

// Round2 округляет до двух знаков после запятой.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
