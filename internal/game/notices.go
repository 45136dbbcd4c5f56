package game

import "container/list"

// Notice is a short message produced while a turn resolves
type Notice struct {
	Kind    string `json:"kind"` // "event" | "bonus" | "level" | "system"
	Message string `json:"message"`
}

// NoticeQueue accumulates notices until the presentation layer drains them
type NoticeQueue struct {
	pending *list.List // *Notice
}

// NewNoticeQueue creates an empty queue
func NewNoticeQueue() *NoticeQueue {
	return &NoticeQueue{
		pending: list.New(),
	}
}

// Push adds a notice to the back of the queue
func (q *NoticeQueue) Push(kind, message string) {
	if message == "" {
		return
	}
	q.pending.PushBack(&Notice{Kind: kind, Message: message})
}

// Drain pops all pending notices in arrival order
func (q *NoticeQueue) Drain() []Notice {
	notices := make([]Notice, 0, q.pending.Len())
	for elem := q.pending.Front(); elem != nil; elem = elem.Next() {
		notices = append(notices, *elem.Value.(*Notice))
	}
	q.pending.Init()
	return notices
}

// Count returns the number of pending notices
func (q *NoticeQueue) Count() int {
	return q.pending.Len()
}
