package queue

import (
	"container/list"
	"time"
)

type storedItem struct {
	item        Item
	submittedAt time.Time
}

// itemStore holds pending items keyed by id while remembering the order in
// which ids were first inserted.
type itemStore struct {
	byID  map[string]*list.Element
	order *list.List
}

func newItemStore() *itemStore {
	return &itemStore{
		byID:  make(map[string]*list.Element),
		order: list.New(),
	}
}

// insert stores item under its id. An existing id is replaced in place and
// keeps its position in the scan order.
func (s *itemStore) insert(item Item, at time.Time) (overwrote bool) {
	if elem, ok := s.byID[item.ID]; ok {
		elem.Value = &storedItem{item: item, submittedAt: at}
		return true
	}
	s.byID[item.ID] = s.order.PushBack(&storedItem{item: item, submittedAt: at})
	return false
}

func (s *itemStore) get(id string) (*storedItem, bool) {
	elem, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return elem.Value.(*storedItem), true
}

func (s *itemStore) remove(id string) (*storedItem, bool) {
	elem, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	return s.order.Remove(elem).(*storedItem), true
}

func (s *itemStore) count() int {
	return len(s.byID)
}

// each visits items in insertion order until fn returns false.
func (s *itemStore) each(fn func(*storedItem) bool) {
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		if !fn(elem.Value.(*storedItem)) {
			return
		}
	}
}
