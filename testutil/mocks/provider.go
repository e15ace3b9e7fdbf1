// =============================================================================
// 🎭 MockProvider - LLM Provider 模拟实现
// =============================================================================
// 用于测试的 llmprovider.Provider 模拟，支持自定义响应和错误注入
//
// 使用方法:
//
//	provider := mocks.NewMockProvider().
//	    WithResponse("Hello, World!").
//	    WithTokenUsage(100, 50)
//
//	// 或者使用流式响应
//	provider := mocks.NewMockProvider().
//	    WithStreamChunks([]string{"Hello", ", ", "World", "!"})
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/tdevteam/upgradeforge/llmprovider"
	"github.com/tdevteam/upgradeforge/types"
)

// =============================================================================
// 🎯 MockProvider 结构
// =============================================================================

// MockProvider is a mock implementation of llmprovider.Provider.
type MockProvider struct {
	mu sync.RWMutex

	// 响应配置
	response     string
	streamChunks []string
	err          error

	// Token 使用统计
	promptTokens     int
	completionTokens int

	// 调用记录
	calls        []MockProviderCall
	generateFunc func(ctx context.Context, req llmprovider.GenerateRequest) (llmprovider.GenerateResult, error)

	// 行为控制
	delay     time.Duration
	failAfter int
	callCount int
}

// MockProviderCall records a single Generate invocation.
type MockProviderCall struct {
	Request  llmprovider.GenerateRequest
	Response llmprovider.GenerateResult
	Error    error
}

// =============================================================================
// 🔧 构造函数和 Builder 方法
// =============================================================================

// NewMockProvider creates a MockProvider with sensible defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		response:         "Mock response",
		streamChunks:     []string{},
		calls:            []MockProviderCall{},
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithResponse sets the fixed response content returned by Generate.
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithError sets an error returned by every call to Generate.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithStreamChunks sets the chunks yielded by StreamGenerate.
func (m *MockProvider) WithStreamChunks(chunks []string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = chunks
	return m
}

// WithTokenUsage sets the token usage reported alongside the response.
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithDelay sets an artificial delay before Generate returns.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter makes Generate fail starting on call N+1.
func (m *MockProvider) WithFailAfter(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithGenerateFunc installs a custom Generate implementation.
func (m *MockProvider) WithGenerateFunc(fn func(ctx context.Context, req llmprovider.GenerateRequest) (llmprovider.GenerateResult, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateFunc = fn
	return m
}

// =============================================================================
// 🎯 Provider 接口实现
// =============================================================================

func (m *MockProvider) Name() string { return "mock" }

// Generate implements llmprovider.Provider.
func (m *MockProvider) Generate(ctx context.Context, req llmprovider.GenerateRequest) (llmprovider.GenerateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return llmprovider.GenerateResult{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	if m.failAfter > 0 && m.callCount > m.failAfter {
		err := &llmprovider.RateLimitError{Provider: "mock"}
		m.calls = append(m.calls, MockProviderCall{Request: req, Error: err})
		return llmprovider.GenerateResult{}, err
	}

	if m.err != nil {
		m.calls = append(m.calls, MockProviderCall{Request: req, Error: m.err})
		return llmprovider.GenerateResult{}, m.err
	}

	if m.generateFunc != nil {
		resp, err := m.generateFunc(ctx, req)
		m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
		return resp, err
	}

	res := llmprovider.GenerateResult{
		Content: m.response,
		Success: true,
		Model:   req.ModelID,
		Usage: types.TokenUsage{
			PromptTokens:     m.promptTokens,
			CompletionTokens: m.completionTokens,
			TotalTokens:      m.promptTokens + m.completionTokens,
		},
	}

	m.calls = append(m.calls, MockProviderCall{Request: req, Response: res})
	return res, nil
}

// StreamGenerate implements llmprovider.Provider.
func (m *MockProvider) StreamGenerate(ctx context.Context, req llmprovider.GenerateRequest) (<-chan llmprovider.GenerateChunk, error) {
	m.mu.RLock()
	chunks := append([]string{}, m.streamChunks...)
	err := m.err
	m.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return llmprovider.StreamFallback(ctx, m, req)
	}

	ch := make(chan llmprovider.GenerateChunk, len(chunks)+1)
	go func() {
		defer close(ch)
		for i, c := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- llmprovider.GenerateChunk{Delta: c, Done: i == len(chunks)-1}:
			}
		}
	}()
	return ch, nil
}

// =============================================================================
// 🔍 查询方法
// =============================================================================

// Calls returns every recorded Generate invocation.
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockProviderCall{}, m.calls...)
}

// CallCount returns the number of Generate invocations so far.
func (m *MockProvider) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount
}

// LastCall returns the most recent recorded call, or nil if none occurred.
func (m *MockProvider) LastCall() *MockProviderCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears call history and error injection state.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = []MockProviderCall{}
	m.callCount = 0
	m.err = nil
}

// =============================================================================
// 🎭 预设 Provider 工厂
// =============================================================================

// NewSuccessProvider creates a MockProvider that always succeeds with response.
func NewSuccessProvider(response string) *MockProvider {
	return NewMockProvider().WithResponse(response)
}

// NewErrorProvider creates a MockProvider that always fails with err.
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider().WithError(err)
}

// NewStreamProvider creates a MockProvider that streams chunks.
func NewStreamProvider(chunks []string) *MockProvider {
	return NewMockProvider().WithStreamChunks(chunks)
}

// NewFlakeyProvider creates a MockProvider that rate-limits after failAfter calls.
func NewFlakeyProvider(failAfter int, response string) *MockProvider {
	return NewMockProvider().
		WithResponse(response).
		WithFailAfter(failAfter)
}
