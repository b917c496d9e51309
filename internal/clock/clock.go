// Package clock содержит источники времени и случайности, которые внедряются в ядро.
package clock

import (
	"math/rand"
	"sync"
	"time"
)

// Day длительность игровых суток для регенерации голосов и накопления урожая
const Day = 24 * time.Hour

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// Random источник случайности для кликов и лотерей
type Random interface {
	// Intn возвращает равномерное целое в [0, n)
	Intn(n int) int
	// Bool возвращает равновероятный true/false
	Bool() bool
}

// System реальные часы в UTC
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// LockedRandom потокобезопасная обертка над math/rand
type LockedRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom создает генератор с заданным зерном
func NewRandom(seed int64) *LockedRandom {
	return &LockedRandom{rnd: rand.New(rand.NewSource(seed))}
}

func (r *LockedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

func (r *LockedRandom) Bool() bool {
	return r.Intn(2) == 1
}

// Fixed часы, которые стоят на месте, пока их не передвинут
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now.UTC()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance сдвигает часы вперед
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set устанавливает текущее время
func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	f.now = now.UTC()
	f.mu.Unlock()
}

// Scripted возвращает заранее заданные значения; когда они кончаются, Intn отдает 0, а Bool false.
type Scripted struct {
	mu    sync.Mutex
	ints  []int
	bools []bool
}

func NewScripted() *Scripted {
	return &Scripted{}
}

// PushInts добавляет значения для Intn
func (s *Scripted) PushInts(values ...int) *Scripted {
	s.mu.Lock()
	s.ints = append(s.ints, values...)
	s.mu.Unlock()
	return s
}

// PushBools добавляет значения для Bool
func (s *Scripted) PushBools(values ...bool) *Scripted {
	s.mu.Lock()
	s.bools = append(s.bools, values...)
	s.mu.Unlock()
	return s
}

func (s *Scripted) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if n <= 0 {
		return 0
	}
	return v % n
}

func (s *Scripted) Bool() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bools) == 0 {
		return false
	}
	v := s.bools[0]
	s.bools = s.bools[1:]
	return v
}
