// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package events

import (
	"context"
	"sync"
)

// MemoryPublisher 内存发布器，保存全部已发布事件；可按类型注入失败
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
	failOn map[Type]error
}

// NewMemoryPublisher 创建内存发布器
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{failOn: make(map[Type]error)}
}

// Publish 实现 Publisher
func (p *MemoryPublisher) Publish(ctx context.Context, evt Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failOn[evt.Type]; err != nil {
		return err
	}
	p.events = append(p.events, evt)
	return nil
}

// FailOn 之后发布该类型事件时返回 err；err 为 nil 时取消
func (p *MemoryPublisher) FailOn(t Type, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failOn, t)
		return
	}
	p.failOn[t] = err
}

// Events 已发布事件
func (p *MemoryPublisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Event(nil), p.events...)
}

// OfType 指定类型的已发布事件
func (p *MemoryPublisher) OfType(t Type) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
