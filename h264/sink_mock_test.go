// Hand-written mock of the Sink interface in filter.go, in the shape MockGen
// produces.

package h264

import (
	reflect "reflect"

	gomock "github.com/golang/mock/gomock"
)

// MockSink is a mock of Sink interface.
type MockSink struct {
	ctrl     *gomock.Controller
	recorder *MockSinkMockRecorder
}

// MockSinkMockRecorder is the mock recorder for MockSink.
type MockSinkMockRecorder struct {
	mock *MockSink
}

// NewMockSink creates a new mock instance.
func NewMockSink(ctrl *gomock.Controller) *MockSink {
	mock := &MockSink{ctrl: ctrl}
	mock.recorder = &MockSinkMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSink) EXPECT() *MockSinkMockRecorder {
	return m.recorder
}

// WriteAction mocks base method.
func (m *MockSink) WriteAction(arg0 Action) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "WriteAction", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// WriteAction indicates an expected call of WriteAction.
func (mr *MockSinkMockRecorder) WriteAction(arg0 interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "WriteAction", reflect.TypeOf((*MockSink)(nil).WriteAction), arg0)
}
