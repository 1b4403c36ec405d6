package handlers

import (
	"sync"

	"pdf-translator-web/models"
)

// eventBroker 任务进度事件的发布订阅
// 每个任务保留完整的有序事件历史，中途订阅先回放历史再接实时流。
// 订阅者掉线不影响任务执行，满的通道直接丢弃事件
type eventBroker struct {
	mu      sync.Mutex
	subs    map[string][]chan models.ProgressEvent // taskID -> 订阅者
	history map[string][]models.ProgressEvent      // taskID -> 有序事件历史
}

func newEventBroker() *eventBroker {
	return &eventBroker{
		subs:    make(map[string][]chan models.ProgressEvent),
		history: make(map[string][]models.ProgressEvent),
	}
}

// Subscribe 订阅一个任务的进度事件，返回取消函数
// 已发生的事件按原顺序先行送达
func (b *eventBroker) Subscribe(taskID string) (<-chan models.ProgressEvent, func()) {
	b.mu.Lock()
	past := b.history[taskID]
	ch := make(chan models.ProgressEvent, len(past)+16)
	for _, event := range past {
		ch <- event
	}
	b.subs[taskID] = append(b.subs[taskID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[taskID]
		for i, c := range list {
			if c == ch {
				b.subs[taskID] = append(list[:i], list[i+1:]...)
				close(c)
				break
			}
		}
		if len(b.subs[taskID]) == 0 {
			delete(b.subs, taskID)
		}
	}
	return ch, cancel
}

// Publish 记录并广播事件，从不阻塞
func (b *eventBroker) Publish(event models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history[event.TaskID] = append(b.history[event.TaskID], event)
	for _, ch := range b.subs[event.TaskID] {
		select {
		case ch <- event:
		default:
			// 订阅者消费太慢，丢弃这条事件
		}
	}
}

// Finish 任务结束后广播终态事件并关闭所有订阅
// 历史保留到任务被清理，迟到的订阅者仍可回放
func (b *eventBroker) Finish(event models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history[event.TaskID] = append(b.history[event.TaskID], event)
	for _, ch := range b.subs[event.TaskID] {
		select {
		case ch <- event:
		default:
		}
		close(ch)
	}
	delete(b.subs, event.TaskID)
}

// Drop 任务清理时丢弃其事件历史
func (b *eventBroker) Drop(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.history, taskID)
}
