package runtimeabi

import (
	"sync"

	"github.com/example/gots/internal/types"
)

// arrayValue backs both the untyped ArrayLiteral/TypedArrayLiteral arrays
// and the simple_array numeric family (§1 marks the typed-array storage
// format itself out of scope; this is the working stand-in). elemType is
// UNKNOWN for a plain heterogeneous array literal.
type arrayValue struct {
	mu       sync.RWMutex
	elemType types.DataType
	data     []int64
}

type arrayTable struct {
	handleTable[*arrayValue]
}

func newArrayTable() *arrayTable { return &arrayTable{} }

// Create backs __array_create / __typed_array_create_<T>: allocate a new,
// empty array of the given element type.
func (t *arrayTable) Create(elemType types.DataType) int64 {
	return t.alloc(&arrayValue{elemType: elemType})
}

// CreateFrom seeds a new array with a copy of elems. Slice, the
// zeros/ones/arange/linspace constructors and __simple_array_shape build
// their results with it; the array-literal emitters do not, they call
// __array_create and then __array_push once per element.
func (t *arrayTable) CreateFrom(elemType types.DataType, elems []int64) int64 {
	data := make([]int64, len(elems))
	copy(data, elems)
	return t.alloc(&arrayValue{elemType: elemType, data: data})
}

func (t *arrayTable) Push(h int64, v int64) int64 {
	a, ok := t.get(h)
	if !ok {
		return -1
	}
	a.mu.Lock()
	a.data = append(a.data, v)
	n := len(a.data)
	a.mu.Unlock()
	return int64(n)
}

func (t *arrayTable) Pop(h int64) int64 {
	a, ok := t.get(h)
	if !ok {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.data) == 0 {
		return 0
	}
	last := a.data[len(a.data)-1]
	a.data = a.data[:len(a.data)-1]
	return last
}

func (t *arrayTable) Size(h int64) int64 {
	a, ok := t.get(h)
	if !ok {
		return 0
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int64(len(a.data))
}

// Get backs __array_access/__array_get: bounds-checked element read.
func (t *arrayTable) Get(h int64, idx int64) int64 {
	a, ok := t.get(h)
	if !ok {
		return 0
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if idx < 0 || idx >= int64(len(a.data)) {
		return 0
	}
	return a.data[idx]
}

func (t *arrayTable) Set(h int64, idx int64, v int64) int64 {
	a, ok := t.get(h)
	if !ok {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx < 0 || idx >= int64(len(a.data)) {
		return 0
	}
	a.data[idx] = v
	return 1
}

// Data returns a defensive copy, used by console logging and by the
// simple-array reduction family below.
func (t *arrayTable) Data(h int64) ([]int64, bool) {
	a, ok := t.get(h)
	if !ok {
		return nil, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]int64, len(a.data))
	copy(out, a.data)
	return out, true
}

func (t *arrayTable) Slice(h int64, start, end int64) int64 {
	data, ok := t.Data(h)
	if !ok {
		return t.Create(types.UNKNOWN)
	}
	n := int64(len(data))
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return t.CreateFrom(types.UNKNOWN, nil)
	}
	return t.CreateFrom(types.UNKNOWN, data[start:end])
}

func (t *arrayTable) ToString(h int64, strings *stringTable) int64 {
	data, _ := t.Data(h)
	var b []byte
	b = append(b, '[')
	for i, v := range data {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendInt(b, v)
	}
	b = append(b, ']')
	return strings.Intern(string(b))
}

func appendInt(b []byte, v int64) []byte {
	if v == 0 {
		return append(b, '0')
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		tmp[i] = '-'
	}
	return append(b, tmp[i:]...)
}

// Sum/Mean/Max/Min back the __simple_array_* numeric-reduction family
// (§1's "array of numbers, with reductions" carve-out — these are plain
// int64 reductions since the code generator never hands this table a
// float bit pattern it hasn't already tagged as NUMBER at the call site).
func (t *arrayTable) Sum(h int64) int64 {
	data, _ := t.Data(h)
	var s int64
	for _, v := range data {
		s += v
	}
	return s
}

func (t *arrayTable) Mean(h int64) int64 {
	data, _ := t.Data(h)
	if len(data) == 0 {
		return 0
	}
	return t.Sum(h) / int64(len(data))
}

func (t *arrayTable) Max(h int64) int64 {
	data, _ := t.Data(h)
	if len(data) == 0 {
		return 0
	}
	m := data[0]
	for _, v := range data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func (t *arrayTable) Min(h int64) int64 {
	data, _ := t.Data(h)
	if len(data) == 0 {
		return 0
	}
	m := data[0]
	for _, v := range data[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func (t *arrayTable) Zeros(n int64) int64 {
	data := make([]int64, n)
	return t.CreateFrom(types.NUMBER, data)
}

func (t *arrayTable) Ones(n int64) int64 {
	data := make([]int64, n)
	for i := range data {
		data[i] = 1
	}
	return t.CreateFrom(types.NUMBER, data)
}

func (t *arrayTable) Arange(start, stop, step int64) int64 {
	if step == 0 {
		step = 1
	}
	var data []int64
	if step > 0 {
		for v := start; v < stop; v += step {
			data = append(data, v)
		}
	} else {
		for v := start; v > stop; v += step {
			data = append(data, v)
		}
	}
	return t.CreateFrom(types.NUMBER, data)
}

func (t *arrayTable) Linspace(start, stop, count int64) int64 {
	if count <= 0 {
		return t.CreateFrom(types.NUMBER, nil)
	}
	if count == 1 {
		return t.CreateFrom(types.NUMBER, []int64{start})
	}
	data := make([]int64, count)
	step := (stop - start) / (count - 1)
	for i := range data {
		data[i] = start + int64(i)*step
	}
	return t.CreateFrom(types.NUMBER, data)
}
