// Package pubsub 进程内的同步发布/订阅
package pubsub

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// 事件类型
const (
	KindDataUpdate  = "dataUpdate"
	KindTeamUpdate  = "teamUpdate"
	KindStatsUpdate = "statsUpdate"
	KindError       = "error"
)

// Event 一次发布的事件
type Event struct {
	Kind    string    `json:"type"`
	Payload any       `json:"data"`
	At      time.Time `json:"at"`
}

// Handler 订阅回调；在发布者的 goroutine 中同步执行
type Handler func(Event)

type subscriber struct {
	id      string
	kinds   map[string]struct{} // 为空表示订阅全部事件
	handler Handler
}

func (s *subscriber) wants(kind string) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// Broker 按订阅顺序逐个调用订阅者
type Broker struct {
	mu   sync.RWMutex
	subs []*subscriber
	now  func() time.Time
}

// NewBroker 创建 Broker
func NewBroker() *Broker {
	return &Broker{now: time.Now}
}

// Subscribe 订阅指定类型的事件（不传 kinds 表示全部），返回取消订阅函数
func (b *Broker) Subscribe(handler Handler, kinds ...string) (unsubscribe func()) {
	s := &subscriber{id: uuid.NewString(), handler: handler}
	if len(kinds) > 0 {
		s.kinds = make(map[string]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(s.id) })
	}
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			// 复制而不是原地修改：进行中的 Publish 持有旧切片
			next := make([]*subscriber, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			return
		}
	}
}

// Publish 发布事件；回调在锁外执行，回调内可以安全地订阅/取消订阅
func (b *Broker) Publish(kind string, payload any) int {
	b.mu.RLock()
	snapshot := b.subs
	b.mu.RUnlock()

	ev := Event{Kind: kind, Payload: payload, At: b.now()}
	delivered := 0
	for _, s := range snapshot {
		if !s.wants(kind) {
			continue
		}
		s.handler(ev)
		delivered++
	}
	return delivered
}

// Len 当前订阅者数
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
