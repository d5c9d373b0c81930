package shelly

import (
	"context"
	"sync"
)

// MockClient implements Client for testing. It holds an in-memory switch
// state, records every SetState call, and can be made to fail on demand.
type MockClient struct {
	mu       sync.Mutex
	state    bool
	getErr   error
	setErr   error
	setCalls []bool
	getCalls int
}

// NewMockClient creates a mock device whose switch starts in the given state.
func NewMockClient(initial bool) *MockClient {
	return &MockClient{state: initial}
}

// GetState returns the mock state, or the injected error.
func (m *MockClient) GetState(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++
	if m.getErr != nil {
		return false, m.getErr
	}
	return m.state, nil
}

// SetState records the call and updates the mock state, or returns the
// injected error.
func (m *MockClient) SetState(ctx context.Context, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil {
		return m.setErr
	}
	m.setCalls = append(m.setCalls, on)
	m.state = on
	return nil
}

// SetCurrentState overrides the mock switch state, simulating an external
// change on the device.
func (m *MockClient) SetCurrentState(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = on
}

// FailGetWith makes subsequent GetState calls return err. Pass nil to clear.
func (m *MockClient) FailGetWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// FailSetWith makes subsequent SetState calls return err. Pass nil to clear.
func (m *MockClient) FailSetWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

// SetCalls returns the recorded SetState arguments in call order.
func (m *MockClient) SetCalls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.setCalls...)
}

// GetCalls returns how many times GetState was invoked.
func (m *MockClient) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}
