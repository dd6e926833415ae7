package document

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

const (
	KindRateConfirmation = "rate_confirmation"
	KindDispatchSheet    = "dispatch_sheet"
	KindBillOfLading     = "bill_of_lading"
	KindInsurance        = "insurance_certificate"
)

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]contractx.Document
	now  func() time.Time
}

var _ contractx.DocumentStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]contractx.Document),
		now:  time.Now,
	}
}

func (m *MemoryStore) Upload(_ context.Context, doc contractx.Document) (string, error) {
	doc, err := prepare(doc, m.now())
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.docs[doc.ID] = doc
	m.mu.Unlock()
	return doc.ID, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (contractx.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[strings.TrimSpace(id)]
	if !ok {
		return contractx.Document{}, fmt.Errorf("%w: %s", contractx.ErrDocumentNotFound, id)
	}
	doc.Content = append([]byte(nil), doc.Content...)
	return doc, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id string, status contractx.DocumentStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("%w: %s", contractx.ErrDocumentNotFound, id)
	}
	doc.Status = status
	doc.UpdatedAt = m.now()
	m.docs[doc.ID] = doc
	return nil
}

func prepare(doc contractx.Document, now time.Time) (contractx.Document, error) {
	doc.Name = strings.TrimSpace(doc.Name)
	if doc.Name == "" {
		return contractx.Document{}, fmt.Errorf("%w: document name is required", contractx.ErrInvalidInput)
	}
	doc.Kind = strings.TrimSpace(doc.Kind)
	if doc.Kind == "" {
		return contractx.Document{}, fmt.Errorf("%w: document kind is required", contractx.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = contractx.DocumentUploaded
	}
	if err := validateStatus(doc.Status); err != nil {
		return contractx.Document{}, err
	}
	doc.Content = append([]byte(nil), doc.Content...)
	doc.UploadedAt = now
	doc.UpdatedAt = now
	return doc, nil
}

func validateStatus(status contractx.DocumentStatus) error {
	switch status {
	case contractx.DocumentUploaded, contractx.DocumentVerified, contractx.DocumentRejected, contractx.DocumentArchived:
		return nil
	default:
		return fmt.Errorf("%w: unknown document status %q", contractx.ErrInvalidInput, status)
	}
}
