package logger

import (
	"context"
	"slices"
	"sync"
)

// TagsKey is the attribute name under which request tags appear in log records.
const TagsKey = "tags"

type tagsKey struct{}

// Tags is the ordered diagnostic tag stack of one request. A nil *Tags is
// valid and behaves as an empty stack.
type Tags struct {
	mu    sync.Mutex
	stack []string
}

// WithTags returns a context carrying a fresh, empty tag stack.
func WithTags(ctx context.Context) (context.Context, *Tags) {
	t := &Tags{}
	return context.WithValue(ctx, tagsKey{}, t), t
}

// TagsFromCtx returns the tag stack carried by ctx, or nil.
func TagsFromCtx(ctx context.Context) *Tags {
	t, _ := ctx.Value(tagsKey{}).(*Tags)
	return t
}

// Push appends tag to the top of the stack.
func (t *Tags) Push(tag string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stack = append(t.stack, tag)
	t.mu.Unlock()
}

// Pop removes and returns the most recently pushed tag.
func (t *Tags) Pop() (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.stack) == 0 {
		return "", false
	}
	top := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return top, true
}

// Values returns a copy of the tags, oldest first.
func (t *Tags) Values() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.stack)
}

// Len reports the number of tags on the stack.
func (t *Tags) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stack)
}

// Clear removes every tag.
func (t *Tags) Clear() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stack = nil
	t.mu.Unlock()
}
