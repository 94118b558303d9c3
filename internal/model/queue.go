package model

import (
	"sync"
	"time"
)

type QueuedLevel struct {
	Source   string
	Data     LandmarkData
	QueuedAt time.Time
}

// Queue holds the levels a human experiment still has to play.
type Queue struct {
	levels []QueuedLevel
	mu     sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		levels: []QueuedLevel{},
	}
}

func (q *Queue) Add(source string, data LandmarkData) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.levels = append(q.levels, QueuedLevel{
		Source:   source,
		Data:     data,
		QueuedAt: time.Now(),
	})
}

// Next pops the oldest level; ok is false once the queue is drained.
func (q *Queue) Next() (QueuedLevel, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.levels) == 0 {
		return QueuedLevel{}, false
	}
	next := q.levels[0]
	q.levels = q.levels[1:]
	return next, true
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.levels)
}
