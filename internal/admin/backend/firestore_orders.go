package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

// FirestoreConfig tunes the Firestore order source.
type FirestoreConfig struct {
	Collection string
	FetchLimit int
	Logger     *zap.Logger
}

// FirestoreOrders reads orders from the filing backend's Firestore projection.
type FirestoreOrders struct {
	client     *firestore.Client
	collection string
	fetchLimit int
	logger     *zap.Logger

	mu     sync.RWMutex
	docIDs map[string]string
}

type orderDocument struct {
	DisplayID          string         `firestore:"displayId"`
	InternalID         any            `firestore:"internalId"`
	SubmissionID       string         `firestore:"submissionId"`
	ServiceName        string         `firestore:"serviceName"`
	Status             string         `firestore:"status"`
	ClientName         string         `firestore:"clientName"`
	ClientEmail        string         `firestore:"clientEmail"`
	AmountMinor        int64          `firestore:"amountMinor"`
	Currency           string         `firestore:"currency"`
	CreatedAt          time.Time      `firestore:"createdAt"`
	UpdatedAt          time.Time      `firestore:"updatedAt"`
	FormData           map[string]any `firestore:"formData"`
	UploadedDocuments  map[string]any `firestore:"uploadedDocuments"`
	GeneratedDocuments map[string]any `firestore:"generatedDocuments"`
}

// NewFirestoreOrders constructs a Firestore backed order source.
func NewFirestoreOrders(client *firestore.Client, cfg FirestoreConfig) *FirestoreOrders {
	if client == nil {
		panic("backend: firestore client is required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		cfg.Collection = "orders"
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 1000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreOrders{
		client:     client,
		collection: strings.TrimSpace(cfg.Collection),
		fetchLimit: cfg.FetchLimit,
		logger:     logger.Named("firestore_orders"),
	}
}

// ListOrders implements orders.Source, newest first.
func (s *FirestoreOrders) ListOrders(ctx context.Context) ([]orders.Order, error) {
	iter := s.client.Collection(s.collection).
		OrderBy("createdAt", firestore.Desc).
		Limit(s.fetchLimit).
		Documents(ctx)
	defer iter.Stop()

	var list []orders.Order
	docIDs := make(map[string]string)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("backend: list firestore orders: %w", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			s.logger.Warn("skip order document", zap.String("path", snap.Ref.Path), zap.Error(err))
			continue
		}
		order := orderFromDocument(snap.Ref.ID, doc)
		if internal := string(order.InternalID); internal != snap.Ref.ID {
			docIDs[internal] = snap.Ref.ID
		}
		list = append(list, order)
	}
	s.setDocumentIDs(docIDs)
	return list, nil
}

// DeleteOrder implements orders.Source. id is the internal id of a listed
// order; documents whose id differs from their internalId field are deleted
// by document id.
func (s *FirestoreOrders) DeleteOrder(ctx context.Context, id string) error {
	id = s.documentID(strings.TrimSpace(id))
	if id == "" || strings.Contains(id, "/") {
		return orders.ErrOrderNotFound
	}
	ref := s.client.Collection(s.collection).Doc(id)
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return orders.ErrOrderNotFound
		}
		return fmt.Errorf("backend: delete firestore order %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreOrders) setDocumentIDs(ids map[string]string) {
	s.mu.Lock()
	s.docIDs = ids
	s.mu.Unlock()
}

func (s *FirestoreOrders) documentID(internal string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if docID, ok := s.docIDs[internal]; ok {
		return docID
	}
	return internal
}

func orderFromDocument(docID string, doc orderDocument) orders.Order {
	internal := internalIDString(doc.InternalID)
	if internal == "" {
		internal = strings.TrimSpace(docID)
	}
	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = doc.CreatedAt
	}
	return orders.Order{
		DisplayID:          strings.TrimSpace(doc.DisplayID),
		InternalID:         orders.InternalID(internal),
		SubmissionID:       strings.TrimSpace(doc.SubmissionID),
		ServiceName:        strings.TrimSpace(doc.ServiceName),
		Status:             strings.TrimSpace(doc.Status),
		ClientName:         doc.ClientName,
		ClientEmail:        doc.ClientEmail,
		AmountMinor:        doc.AmountMinor,
		Currency:           strings.ToUpper(strings.TrimSpace(doc.Currency)),
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          updated,
		FormData:           doc.FormData,
		UploadedDocuments:  doc.UploadedDocuments,
		GeneratedDocuments: doc.GeneratedDocuments,
	}
}

// internalIDString renders string and numeric ids alike.
func internalIDString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
