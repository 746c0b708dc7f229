package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger, used to assert that
// specific events are logged.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

// NewMockLogger creates a MockLogger without expectations.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// AtLevel makes Level report level, which decides whether guarded debug logs run.
func (m *MockLogger) AtLevel(level Level) *MockLogger {
	m.On("Level").Return(level)
	return m
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	args := m.Called()
	return args.Get(0).(Level) //nolint:forcetypeassert
}

func (m *MockLogger) With(keyValues ...any) Logger {
	args := m.Called(keyValues...)
	return args.Get(0).(Logger) //nolint:forcetypeassert
}
