package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// MergeStrategy 决定节点输出的某个键如何并入已有状态
type MergeStrategy uint8

const (
	// MergeReplace 新值覆盖旧值（默认）
	MergeReplace MergeStrategy = iota
	// MergeAppend 新值追加到已有列表末尾
	MergeAppend
)

func (s MergeStrategy) String() string {
	switch s {
	case MergeReplace:
		return "replace"
	case MergeAppend:
		return "append"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// Reducer merges an update into the current value of a key.
type Reducer func(current Option, update Value) (Value, error)

// LastValueReducer returns the most recent value.
func LastValueReducer() Reducer {
	return func(_ Option, update Value) (Value, error) {
		return update, nil
	}
}

// AppendReducer concatenates onto a list. Non-list operands are treated
// as one-element lists, an absent current value as the empty list.
func AppendReducer() Reducer {
	return func(current Option, update Value) (Value, error) {
		var result []Value
		if current.Present {
			result = append(result, asElements(current.Value)...)
		}
		result = append(result, asElements(update)...)
		return Value{kind: KindList, list: result}, nil
	}
}

func asElements(v Value) []Value {
	if v.kind == KindList {
		return v.list
	}
	return []Value{v}
}

func (s MergeStrategy) reducer() (Reducer, error) {
	switch s {
	case MergeReplace:
		return LastValueReducer(), nil
	case MergeAppend:
		return AppendReducer(), nil
	default:
		return nil, fmt.Errorf("unknown merge strategy %d", uint8(s))
	}
}

// Update is the partial state a node returns. Keys absent from the update
// are left untouched.
type Update map[string]Value

// StateView is the read-only state handed to node actions. Implementations
// must not be retained beyond the action call.
type StateView interface {
	Get(key string) (Value, bool)
	Lookup(key string) Option
	Keys() []string
}

// State is the per-run key/value container. Every key has a merge
// strategy; keys without a registered strategy use MergeReplace.
type State struct {
	mu         sync.RWMutex
	values     map[string]Value
	strategies map[string]MergeStrategy
	version    uint64
}

// NewState creates a state with the given strategy table and initial values.
// Initial values are installed as-is, not merged.
func NewState(strategies map[string]MergeStrategy, initial map[string]Value) (*State, error) {
	s := &State{
		values:     make(map[string]Value, len(initial)),
		strategies: make(map[string]MergeStrategy, len(strategies)),
	}
	for k, v := range strategies {
		s.strategies[k] = v
	}
	for k, v := range initial {
		if !v.IsValid() {
			return nil, fmt.Errorf("initial value for key %q is invalid", k)
		}
		s.values[k] = v
	}
	return s, nil
}

// Get never panics; a missing key reports false.
func (s *State) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *State) Lookup(key string) Option {
	if v, ok := s.Get(key); ok {
		return Some(v)
	}
	return None()
}

// GetString 读取字符串键；缺失或类型不符时返回 false
func (s *State) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetInt 读取整数键；缺失或类型不符时返回 false
func (s *State) GetInt(key string) (int64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// Keys returns the present keys in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of present keys.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Version increments once per successful Merge.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Strategy returns the merge strategy registered for key.
func (s *State) Strategy(key string) MergeStrategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategies[key]
}

// Merge applies every key of update according to its strategy. Either the
// whole update is applied or, on error, nothing is.
func (s *State) Merge(update Update) error {
	if len(update) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Value, len(s.values)+len(update))
	for k, v := range s.values {
		next[k] = v
	}

	// 按键排序，保证错误信息稳定
	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := update[k]
		if !v.IsValid() {
			return fmt.Errorf("merge key %q: invalid value", k)
		}
		r, err := s.strategies[k].reducer()
		if err != nil {
			return fmt.Errorf("merge key %q: %w", k, err)
		}
		cur, ok := next[k]
		merged, err := r(Option{Value: cur, Present: ok}, v)
		if err != nil {
			return fmt.Errorf("merge key %q: %w", k, err)
		}
		next[k] = merged
	}

	s.values = next
	s.version++
	return nil
}

// Snapshot returns a copy of the current values.
func (s *State) Snapshot() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Native returns the snapshot as plain Go values.
func (s *State) Native() map[string]any {
	snap := s.Snapshot()
	out := make(map[string]any, len(snap))
	for k, v := range snap {
		out[k] = v.Native()
	}
	return out
}

// View returns a read-only view over the state.
func (s *State) View() StateView {
	return stateView{s: s}
}

type stateView struct {
	s *State
}

func (v stateView) Get(key string) (Value, bool) { return v.s.Get(key) }
func (v stateView) Lookup(key string) Option     { return v.s.Lookup(key) }
func (v stateView) Keys() []string               { return v.s.Keys() }

// ViewString 从只读视图中读取字符串
func ViewString(view StateView, key string) (string, bool) {
	v, ok := view.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// ViewInt 从只读视图中读取整数
func ViewInt(view StateView, key string) (int64, bool) {
	v, ok := view.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsInt()
}
