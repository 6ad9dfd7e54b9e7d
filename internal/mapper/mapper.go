package mapper

import (
	"github.com/zmanup/invoicing-api/internal/domain"
)

// ToDocumentDTO converts Document to DocumentDTO
func ToDocumentDTO(doc *domain.Document) domain.DocumentDTO {
	dto := domain.DocumentDTO{
		ID:                 doc.ID,
		DocumentNumber:     doc.DocumentNumber,
		DocumentType:       doc.DocumentType,
		DocumentTypeLabel:  doc.DocumentType.Label(),
		Status:             doc.Status,
		ClientID:           doc.ClientID,
		IssueDate:          doc.IssueDate,
		DueDate:            doc.DueDate,
		Subtotal:           doc.Subtotal,
		VATRate:            doc.VATRate,
		VATAmount:          doc.VATAmount,
		TotalAmount:        doc.TotalAmount,
		Currency:           doc.Currency,
		Notes:              doc.Notes,
		PaymentMethod:      doc.PaymentMethod,
		HasPDF:             doc.PDFPath != "",
		IsImmutable:        doc.IsImmutable,
		OriginalDocumentID: doc.OriginalDocumentID,
		AllocationNumber:   doc.AllocationNumber,
		Items:              make([]domain.DocumentItemDTO, len(doc.Items)),
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}
	if doc.Client != nil {
		client := ToClientDTO(doc.Client)
		dto.Client = &client
	}
	for i := range doc.Items {
		dto.Items[i] = ToDocumentItemDTO(&doc.Items[i])
	}
	return dto
}

// ToDocumentItemDTO converts DocumentItem to DocumentItemDTO
func ToDocumentItemDTO(item *domain.DocumentItem) domain.DocumentItemDTO {
	return domain.DocumentItemDTO{
		ID:          item.ID,
		ServiceID:   item.ServiceID,
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		TotalPrice:  item.TotalPrice,
		SortOrder:   item.SortOrder,
	}
}

// ToDocumentDTOs converts a slice of documents
func ToDocumentDTOs(docs []domain.Document) []domain.DocumentDTO {
	dtos := make([]domain.DocumentDTO, len(docs))
	for i := range docs {
		dtos[i] = ToDocumentDTO(&docs[i])
	}
	return dtos
}

// ToDocumentTypeOptions lists document types with their Hebrew labels
func ToDocumentTypeOptions(types []domain.DocumentType) []domain.DocumentTypeOption {
	options := make([]domain.DocumentTypeOption, len(types))
	for i, t := range types {
		options[i] = domain.DocumentTypeOption{Value: t, Label: t.Label()}
	}
	return options
}

// ToClientDTO converts Client to ClientDTO
func ToClientDTO(client *domain.Client) domain.ClientDTO {
	return domain.ClientDTO{
		ID:           client.ID,
		DisplayName:  client.DisplayName(),
		FirstName:    client.FirstName,
		LastName:     client.LastName,
		BusinessName: client.BusinessName,
		BusinessID:   client.BusinessID,
		Email:        client.Email,
		Phone:        client.Phone,
		Address:      client.Address,
		City:         client.City,
		ZipCode:      client.ZipCode,
		ClientType:   client.ClientType,
		IsActive:     client.IsActive,
		CreatedAt:    client.CreatedAt,
	}
}

// ToServiceDTO converts Service to ServiceDTO
func ToServiceDTO(svc *domain.Service) domain.ServiceDTO {
	return domain.ServiceDTO{
		ID:        svc.ID,
		Name:      svc.Name,
		Price:     svc.Price,
		Currency:  svc.Currency,
		Unit:      svc.Unit,
		Category:  svc.Category,
		Notes:     svc.Notes,
		IsActive:  svc.IsActive,
		TimesUsed: svc.TimesUsed,
		CreatedAt: svc.CreatedAt,
	}
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:                 user.ID,
		Email:              user.Email,
		BusinessName:       user.BusinessName,
		BusinessID:         user.BusinessID,
		BusinessType:       user.BusinessType,
		StartReceiptNumber: user.StartReceiptNumber,
		Role:               user.Role,
		IsActive:           user.IsActive,
		AvailableTypes:     domain.AvailableDocumentTypes(user.BusinessType),
	}
}

// ToAllocationRequestDTO converts AllocationRequest to AllocationRequestDTO
func ToAllocationRequestDTO(req *domain.AllocationRequest) domain.AllocationRequestDTO {
	dto := domain.AllocationRequestDTO{
		ID:               req.ID,
		DocumentID:       req.DocumentID,
		Status:           req.Status,
		AllocationNumber: req.AllocationNumber,
		ErrorMessage:     req.ErrorMessage,
		RequestedAt:      req.RequestedAt,
		CompletedAt:      req.CompletedAt,
	}
	if req.Document != nil {
		dto.DocumentNumber = req.Document.DocumentNumber
	}
	return dto
}

// ToAuditLogDTO converts AuditLog to AuditLogDTO
func ToAuditLogDTO(log *domain.AuditLog) domain.AuditLogDTO {
	return domain.AuditLogDTO{
		ID:          log.ID,
		UserID:      log.UserID,
		Action:      log.Action,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Details:     log.Details,
		IPAddress:   log.IPAddress,
		RequestID:   log.RequestID,
		PerformedAt: log.PerformedAt,
	}
}
