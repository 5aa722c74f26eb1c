package watch

import (
	"math"
	"time"
)

// Point is a single value in a series history.
type Point struct {
	Value float64
	Time  time.Time
}

// Buffer is a ring buffer of readings for one series with running
// min/peak statistics.
type Buffer struct {
	Points []Point
	Max    int
	Min    float64
	Peak   float64
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		Points: make([]Point, 0, capacity),
		Max:    capacity,
		Min:    math.MaxFloat64,
		Peak:   -math.MaxFloat64,
	}
}

func (b *Buffer) Push(v float64, t time.Time) {
	p := Point{Value: v, Time: t}
	if len(b.Points) >= b.Max {
		copy(b.Points, b.Points[1:])
		b.Points[len(b.Points)-1] = p
	} else {
		b.Points = append(b.Points, p)
	}

	if v < b.Min {
		b.Min = v
	}
	if v > b.Peak {
		b.Peak = v
	}
}

// Last returns the most recent value, or 0 if empty.
func (b *Buffer) Last() float64 {
	if len(b.Points) == 0 {
		return 0
	}
	return b.Points[len(b.Points)-1].Value
}

func (b *Buffer) Avg() float64 {
	if len(b.Points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range b.Points {
		sum += p.Value
	}
	return sum / float64(len(b.Points))
}

// LastN returns up to the last n values for sparkline rendering.
func (b *Buffer) LastN(n int) []float64 {
	if n <= 0 || len(b.Points) == 0 {
		return nil
	}
	start := len(b.Points) - n
	if start < 0 {
		start = 0
	}
	vals := make([]float64, 0, n)
	for _, p := range b.Points[start:] {
		vals = append(vals, p.Value)
	}
	return vals
}

// Store manages histories for all series shown by the watch view.
type Store struct {
	Data     map[string]*Buffer
	Capacity int
}

func NewStore(capacity int) *Store {
	return &Store{
		Data:     make(map[string]*Buffer),
		Capacity: capacity,
	}
}

func (s *Store) Record(key string, v float64, t time.Time) {
	b, ok := s.Data[key]
	if !ok {
		b = NewBuffer(s.Capacity)
		s.Data[key] = b
	}
	b.Push(v, t)
}

func (s *Store) Get(key string) *Buffer {
	return s.Data[key]
}
