package sfquery

import (
	"context"
	"net/http"
	"sync/atomic"
)

type ClientMock struct {
	SessionStub       func() Session
	SessionCalled     int32
	SendRequestStub   func(ctx context.Context, method string, relURL string, headers http.Header, requestBody []byte) (int, []byte, error)
	SendRequestCalled int32
	QueryStub         func(ctx context.Context, soql string) ([]Record, error)
	QueryCalled       int32
	CreateStub        func(ctx context.Context, sobject string, fields map[string]any) (string, error)
	CreateCalled      int32
	RetrieveStub      func(ctx context.Context, sobject, id string, fields []string) (Record, error)
	RetrieveCalled    int32
	UpdateStub        func(ctx context.Context, sobject, id string, fields map[string]any) error
	UpdateCalled      int32
	UpsertStub        func(ctx context.Context, sobject, externalIDField, externalID string, fields map[string]any) error
	UpsertCalled      int32
	DeleteStub        func(ctx context.Context, sobject, id string) error
	DeleteCalled      int32
}

var _ Client = &ClientMock{}

func (m *ClientMock) Session() Session {
	atomic.AddInt32(&m.SessionCalled, 1)
	return m.SessionStub()
}

func (m *ClientMock) SendRequest(ctx context.Context, method string, relURL string, headers http.Header, requestBody []byte) (int, []byte, error) {
	atomic.AddInt32(&m.SendRequestCalled, 1)
	return m.SendRequestStub(ctx, method, relURL, headers, requestBody)
}

func (m *ClientMock) Query(ctx context.Context, soql string) ([]Record, error) {
	atomic.AddInt32(&m.QueryCalled, 1)
	return m.QueryStub(ctx, soql)
}

func (m *ClientMock) Create(ctx context.Context, sobject string, fields map[string]any) (string, error) {
	atomic.AddInt32(&m.CreateCalled, 1)
	return m.CreateStub(ctx, sobject, fields)
}

func (m *ClientMock) Retrieve(ctx context.Context, sobject, id string, fields []string) (Record, error) {
	atomic.AddInt32(&m.RetrieveCalled, 1)
	return m.RetrieveStub(ctx, sobject, id, fields)
}

func (m *ClientMock) Update(ctx context.Context, sobject, id string, fields map[string]any) error {
	atomic.AddInt32(&m.UpdateCalled, 1)
	return m.UpdateStub(ctx, sobject, id, fields)
}

func (m *ClientMock) Upsert(ctx context.Context, sobject, externalIDField, externalID string, fields map[string]any) error {
	atomic.AddInt32(&m.UpsertCalled, 1)
	return m.UpsertStub(ctx, sobject, externalIDField, externalID, fields)
}

func (m *ClientMock) Delete(ctx context.Context, sobject, id string) error {
	atomic.AddInt32(&m.DeleteCalled, 1)
	return m.DeleteStub(ctx, sobject, id)
}
