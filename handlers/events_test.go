package handlers

import (
	"testing"

	"pdf-translator-web/models"
)

// TestBrokerPublishSubscribe 订阅者收到发布的事件
func TestBrokerPublishSubscribe(t *testing.T) {
	broker := newEventBroker()

	events, cancel := broker.Subscribe("task-1")
	defer cancel()

	broker.Publish(models.ProgressEvent{TaskID: "task-1", Status: models.TaskProcessing, Progress: 50})

	event := <-events
	if event.Progress != 50 || event.Status != models.TaskProcessing {
		t.Errorf("事件内容错误: %+v", event)
	}
	t.Log("✓ 事件送达订阅者")
}

// TestBrokerIsolatesTasks 不同任务的事件互不串台
func TestBrokerIsolatesTasks(t *testing.T) {
	broker := newEventBroker()

	ch1, cancel1 := broker.Subscribe("task-1")
	defer cancel1()
	_, cancel2 := broker.Subscribe("task-2")
	defer cancel2()

	broker.Publish(models.ProgressEvent{TaskID: "task-2", Progress: 10})
	broker.Publish(models.ProgressEvent{TaskID: "task-1", Progress: 99})

	event := <-ch1
	if event.TaskID != "task-1" {
		t.Errorf("收到了别的任务的事件: %+v", event)
	}
	t.Log("✓ 任务事件互相隔离")
}

// TestBrokerReplaysHistory 中途订阅先按原顺序回放历史事件
func TestBrokerReplaysHistory(t *testing.T) {
	broker := newEventBroker()

	broker.Publish(models.ProgressEvent{TaskID: "task-1", Progress: 25})
	broker.Publish(models.ProgressEvent{TaskID: "task-1", Progress: 50})

	events, cancel := broker.Subscribe("task-1")
	defer cancel()

	first := <-events
	second := <-events
	if first.Progress != 25 || second.Progress != 50 {
		t.Errorf("历史回放顺序错误: %.0f, %.0f", first.Progress, second.Progress)
	}

	// 回放之后继续接收实时事件
	broker.Publish(models.ProgressEvent{TaskID: "task-1", Progress: 75})
	if live := <-events; live.Progress != 75 {
		t.Errorf("实时事件丢失: %+v", live)
	}
	t.Log("✓ 历史回放与实时流衔接正确")
}

// TestBrokerFinishCloses 终态事件后通道关闭
func TestBrokerFinishCloses(t *testing.T) {
	broker := newEventBroker()

	events, _ := broker.Subscribe("task-1")
	broker.Finish(models.ProgressEvent{TaskID: "task-1", Status: models.TaskCompleted, Progress: 100})

	event, ok := <-events
	if !ok {
		t.Fatal("终态事件丢失")
	}
	if event.Status != models.TaskCompleted {
		t.Errorf("终态错误: %+v", event)
	}
	if _, ok := <-events; ok {
		t.Error("终态后通道应关闭")
	}
	t.Log("✓ 终态事件后通道关闭")
}

// TestBrokerSlowSubscriberDropped 消费慢的订阅者丢事件而不阻塞发布
func TestBrokerSlowSubscriberDropped(t *testing.T) {
	broker := newEventBroker()

	_, cancel := broker.Subscribe("task-1")
	defer cancel()

	// 缓冲 16，塞 40 条不应阻塞
	for i := 0; i < 40; i++ {
		broker.Publish(models.ProgressEvent{TaskID: "task-1", Progress: float64(i)})
	}
	t.Log("✓ 发布从不阻塞")
}

// TestBrokerCancelRemovesSubscriber 取消后不再接收事件
func TestBrokerCancelRemovesSubscriber(t *testing.T) {
	broker := newEventBroker()

	events, cancel := broker.Subscribe("task-1")
	cancel()

	if _, ok := <-events; ok {
		t.Error("取消后通道应关闭")
	}
	// 取消后的发布不应 panic
	broker.Publish(models.ProgressEvent{TaskID: "task-1", Progress: 1})
	t.Log("✓ 取消订阅干净利落")
}
