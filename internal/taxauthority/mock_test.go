package taxauthority_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmanup/invoicing-api/internal/service"
	"github.com/zmanup/invoicing-api/internal/taxauthority"
	"go.uber.org/zap"
)

func TestMockClient_IssuesNumber(t *testing.T) {
	c := taxauthority.NewMockClient(zap.NewNop())

	number, err := c.RequestAllocation(context.Background(), service.AllocationSubmission{
		BusinessID:    "515151515",
		InvoiceNumber: "10001",
		Amount:        decimal.NewFromInt(25000),
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^AL\d{6}$`), number)
}

func TestMockClient_Rejects(t *testing.T) {
	c := taxauthority.NewMockClient(zap.NewNop())
	c.RejectBusinessIDs["999"] = true

	_, err := c.RequestAllocation(context.Background(), service.AllocationSubmission{BusinessID: "999"})
	assert.ErrorIs(t, err, taxauthority.ErrRejected)
}

func TestMockClient_CancelledContext(t *testing.T) {
	c := taxauthority.NewMockClient(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RequestAllocation(ctx, service.AllocationSubmission{})
	assert.ErrorIs(t, err, context.Canceled)
}
