// Package taxauthority talks to the Israeli Tax Authority allocation service.
// Only a mock client exists; the real protocol is not implemented.
package taxauthority

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/zmanup/invoicing-api/internal/service"
	"go.uber.org/zap"
)

// ErrRejected is returned when the authority refuses a submission
var ErrRejected = errors.New("tax authority rejected the allocation request")

// MockClient issues allocation numbers of the form AL + 6 digits
type MockClient struct {
	// RejectBusinessIDs lists dealer ids whose submissions are refused
	RejectBusinessIDs map[string]bool
	logger            *zap.Logger
}

// NewMockClient creates a new MockClient
func NewMockClient(logger *zap.Logger) *MockClient {
	return &MockClient{RejectBusinessIDs: map[string]bool{}, logger: logger}
}

// RequestAllocation implements service.AllocationRequester
func (c *MockClient) RequestAllocation(ctx context.Context, sub service.AllocationSubmission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.RejectBusinessIDs[sub.BusinessID] {
		return "", fmt.Errorf("%w: invalid business data for %s", ErrRejected, sub.BusinessID)
	}

	number := fmt.Sprintf("AL%06d", rand.Intn(1_000_000))
	c.logger.Info("mock allocation issued",
		zap.String("invoice_number", sub.InvoiceNumber),
		zap.String("allocation_number", number),
		zap.String("amount", sub.Amount.StringFixed(2)))
	return number, nil
}
