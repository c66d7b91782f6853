package ordersync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// MockInvoiceCreator is a mock implementation of InvoiceCreator
type MockInvoiceCreator struct {
	mock.Mock
}

func (m *MockInvoiceCreator) CreateInvoice(ctx context.Context, data invoicing.InvoiceSubmission, cred invoicing.Credential, key string) (*invoicing.InvoiceResult, error) {
	args := m.Called(ctx, data, cred, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.InvoiceResult), args.Error(1)
}

var cred = invoicing.NewCredential("user@acme.com", "acme:s3cr3t")

func TestService_HandleOrder(t *testing.T) {
	creator := new(MockInvoiceCreator)
	creator.On("CreateInvoice", mock.Anything, mock.AnythingOfType("invoicing.InvoiceSubmission"), cred, "order_store1_1001").
		Return(&invoicing.InvoiceResult{ID: "inv-1", Name: "FV-1-7"}, nil).Once()

	svc := NewService(NewMapper(), creator, nil)
	result, err := svc.HandleOrder(context.Background(), paidOrder(), cred)
	require.NoError(t, err)

	assert.True(t, result.Invoiced)
	assert.Equal(t, "inv-1", result.InvoiceID)
	assert.Equal(t, "FV-1-7", result.InvoiceName)
	assert.Equal(t, "order_store1_1001", result.IdempotencyKey)
	creator.AssertExpectations(t)
}

func TestService_HandleOrder_NotBillable(t *testing.T) {
	creator := new(MockInvoiceCreator)
	svc := NewService(NewMapper(), creator, nil)

	order := paidOrder()
	order.Status = OrderStatusPending
	result, err := svc.HandleOrder(context.Background(), order, cred)
	require.NoError(t, err)

	assert.False(t, result.Invoiced)
	assert.Empty(t, result.IdempotencyKey)
	creator.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_HandleOrder_Errors(t *testing.T) {
	t.Run("invalid payload", func(t *testing.T) {
		creator := new(MockInvoiceCreator)
		svc := NewService(NewMapper(), creator, nil)

		order := paidOrder()
		order.Items = nil
		_, err := svc.HandleOrder(context.Background(), order, cred)
		assert.ErrorIs(t, err, invoicing.ErrValidation)
		creator.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invoice failure", func(t *testing.T) {
		creator := new(MockInvoiceCreator)
		creator.On("CreateInvoice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &invoicing.SellerUnresolvedError{TenantID: "acme"})
		svc := NewService(NewMapper(), creator, nil)

		_, err := svc.HandleOrder(context.Background(), paidOrder(), cred)
		assert.ErrorIs(t, err, invoicing.ErrSellerUnresolved)
	})

	t.Run("replay is reported", func(t *testing.T) {
		creator := new(MockInvoiceCreator)
		creator.On("CreateInvoice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&invoicing.InvoiceResult{ID: "inv-1", Replayed: true}, nil)
		svc := NewService(NewMapper(), creator, nil)

		result, err := svc.HandleOrder(context.Background(), paidOrder(), cred)
		require.NoError(t, err)
		assert.True(t, result.Replayed)
	})
}
