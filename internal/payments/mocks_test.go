package payments

import (
	"context"
	"errors"
)

// fakeClient implements Client and captures what the processor sent.
type fakeClient struct {
	CreateResp *Payment
	CreateErr  error
	Created    *Payment

	FindResp *Payment
	FindErr  error
	FoundID  string

	ExecuteResp   *Payment
	ExecuteErr    error
	ExecutedID    string
	ExecutedPayer string
	ExecuteCalls  int
}

func (f *fakeClient) CreatePayment(_ context.Context, p *Payment) (*Payment, error) {
	f.Created = p
	return f.CreateResp, f.CreateErr
}

func (f *fakeClient) FindPayment(_ context.Context, id string) (*Payment, error) {
	f.FoundID = id
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	if f.FindResp != nil {
		return f.FindResp, nil
	}
	return &Payment{ID: id}, nil
}

func (f *fakeClient) ExecutePayment(_ context.Context, id, payerID string) (*Payment, error) {
	f.ExecuteCalls++
	f.ExecutedID = id
	f.ExecutedPayer = payerID
	return f.ExecuteResp, f.ExecuteErr
}

type recordedEntry struct {
	Processor     string
	TransactionID string
	BasketID      *int64
	Payload       any
}

type fakeRecorder struct {
	Entries []recordedEntry
	Err     error
}

func (f *fakeRecorder) RecordProcessorResponse(_ context.Context, processor, transactionID string, basketID *int64, payload any) (int64, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	f.Entries = append(f.Entries, recordedEntry{
		Processor:     processor,
		TransactionID: transactionID,
		BasketID:      basketID,
		Payload:       payload,
	})
	return int64(len(f.Entries)), nil
}

type fakeLedger struct {
	SourceTypes map[string]SourceType
	EventTypes  map[string]PaymentEventType
	Err         error
	nextID      int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		SourceTypes: map[string]SourceType{},
		EventTypes:  map[string]PaymentEventType{},
	}
}

func (f *fakeLedger) GetOrCreateSourceType(_ context.Context, name string) (SourceType, error) {
	if f.Err != nil {
		return SourceType{}, f.Err
	}
	if st, ok := f.SourceTypes[name]; ok {
		return st, nil
	}
	f.nextID++
	st := SourceType{ID: f.nextID, Name: name}
	f.SourceTypes[name] = st
	return st, nil
}

func (f *fakeLedger) GetOrCreatePaymentEventType(_ context.Context, name string) (PaymentEventType, error) {
	if f.Err != nil {
		return PaymentEventType{}, f.Err
	}
	if et, ok := f.EventTypes[name]; ok {
		return et, nil
	}
	f.nextID++
	et := PaymentEventType{ID: f.nextID, Name: name}
	f.EventTypes[name] = et
	return et, nil
}

var errNetwork = errors.New("dial tcp: connection refused")
