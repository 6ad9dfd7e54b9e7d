package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/money"
	"github.com/zmanup/invoicing-api/internal/repository"
	"gorm.io/gorm"
)

const (
	creditDescriptionPrefix   = "זיכוי: "
	partialCreditDefaultLabel = "סכום חלקי"
)

// LineItemBuilder turns caller input into document items with server-computed totals.
// Items come out with SortOrder starting at 1 and without a DocumentID.
type LineItemBuilder struct {
	serviceRepo *repository.ServiceRepository
}

// NewLineItemBuilder creates a new LineItemBuilder
func NewLineItemBuilder(serviceRepo *repository.ServiceRepository) *LineItemBuilder {
	return &LineItemBuilder{serviceRepo: serviceRepo}
}

// Build validates ordinary items and computes their totals. Quantities are signed, so a
// negative line (e.g. a discount) reduces the totals.
// Every failure is an *ItemError naming the 1-based item index.
func (b *LineItemBuilder) Build(ctx context.Context, tx *gorm.DB, userID uuid.UUID, inputs []domain.ItemInput) ([]domain.DocumentItem, error) {
	var serviceIDs []uuid.UUID
	for i, in := range inputs {
		idx := i + 1
		switch {
		case in.MalformedField != "":
			return nil, &ItemError{Index: idx, Field: in.MalformedField, Err: errors.New("quantity and unit price must be numbers, quantity a whole one")}
		case in.Quantity == nil:
			return nil, &ItemError{Index: idx, Field: "quantity", Err: errors.New("quantity is required")}
		case in.UnitPrice == nil:
			return nil, &ItemError{Index: idx, Field: "unitPrice", Err: errors.New("unit price is required")}
		case in.UnitPrice.IsNegative():
			return nil, &ItemError{Index: idx, Field: "unitPrice", Err: errors.New("unit price must not be negative")}
		case strings.TrimSpace(in.Description) == "" && in.ServiceID == nil:
			return nil, &ItemError{Index: idx, Field: "description", Err: errors.New("description is required")}
		}
		if in.ServiceID != nil {
			serviceIDs = append(serviceIDs, *in.ServiceID)
		}
	}

	services := map[uuid.UUID]*domain.Service{}
	if len(serviceIDs) > 0 {
		found, err := b.serviceRepo.ExistingIDs(ctx, tx, userID, serviceIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to check services: %w", err)
		}
		for i, in := range inputs {
			if in.ServiceID != nil && !found[*in.ServiceID] {
				return nil, &ItemError{Index: i + 1, Field: "serviceId", Err: ErrServiceNotFound}
			}
		}
		for i, in := range inputs {
			if in.ServiceID == nil || strings.TrimSpace(in.Description) != "" {
				continue
			}
			svc, err := b.serviceRepo.GetByID(ctx, tx, userID, *in.ServiceID)
			if err != nil {
				return nil, &ItemError{Index: i + 1, Field: "serviceId", Err: ErrServiceNotFound}
			}
			services[svc.ID] = svc
		}
	}

	items := make([]domain.DocumentItem, len(inputs))
	for i, in := range inputs {
		description := strings.TrimSpace(in.Description)
		if description == "" && in.ServiceID != nil {
			description = services[*in.ServiceID].Name
		}
		unitPrice := money.Round2(*in.UnitPrice)
		items[i] = domain.DocumentItem{
			BaseModel:   domain.BaseModel{ID: uuid.New()},
			ServiceID:   in.ServiceID,
			Description: description,
			Quantity:    *in.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  money.LineTotal(*in.Quantity, unitPrice),
			SortOrder:   i + 1,
		}
	}
	return items, nil
}

// BuildPartialCredit synthesises the single line of a partial credit note: quantity -1 at the credited amount
func (b *LineItemBuilder) BuildPartialCredit(amount decimal.Decimal, reason string) []domain.DocumentItem {
	label := strings.TrimSpace(reason)
	if label == "" {
		label = partialCreditDefaultLabel
	}
	amount = money.Round2(amount)
	return []domain.DocumentItem{{
		BaseModel:   domain.BaseModel{ID: uuid.New()},
		Description: creditDescriptionPrefix + label,
		Quantity:    -1,
		UnitPrice:   amount,
		TotalPrice:  money.LineTotal(-1, amount),
		SortOrder:   1,
	}}
}

// BuildFullCredit mirrors every item of the original with negated quantity and the same unit price
func (b *LineItemBuilder) BuildFullCredit(original *domain.Document) []domain.DocumentItem {
	items := make([]domain.DocumentItem, len(original.Items))
	for i, item := range original.Items {
		items[i] = domain.DocumentItem{
			BaseModel:   domain.BaseModel{ID: uuid.New()},
			ServiceID:   item.ServiceID,
			Description: creditDescriptionPrefix + item.Description,
			Quantity:    -item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  money.LineTotal(-item.Quantity, item.UnitPrice),
			SortOrder:   i + 1,
		}
	}
	return items
}

// ReferencedServices lists the service ids referenced by items, one entry per reference
func ReferencedServices(items []domain.DocumentItem) []uuid.UUID {
	var ids []uuid.UUID
	for _, item := range items {
		if item.ServiceID != nil {
			ids = append(ids, *item.ServiceID)
		}
	}
	return ids
}

// LineTotals extracts item totals for the calculator
func LineTotals(items []domain.DocumentItem) []decimal.Decimal {
	totals := make([]decimal.Decimal, len(items))
	for i, item := range items {
		totals[i] = item.TotalPrice
	}
	return totals
}
