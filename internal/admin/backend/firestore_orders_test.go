package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinefiling/filing-admin/internal/admin/orders"
)

func TestOrderFromDocument(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	order := orderFromDocument("doc-1", orderDocument{
		DisplayID:    " ORD-88 ",
		InternalID:   int64(88),
		SubmissionID: "SUB-88",
		ServiceName:  "Private Limited Company Registration",
		Status:       "Name Reserved",
		AmountMinor:  1299900,
		Currency:     "inr",
		CreatedAt:    created,
	})

	require.Equal(t, "ORD-88", order.DisplayID)
	require.Equal(t, orders.InternalID("88"), order.InternalID)
	require.Equal(t, "INR", order.Currency)
	require.Equal(t, created, order.UpdatedAt)
	require.Equal(t, "88", order.Key())
}

func TestOrderFromDocumentFallsBackToDocumentID(t *testing.T) {
	t.Parallel()

	order := orderFromDocument("1017", orderDocument{DisplayID: "TL-17"})
	require.Equal(t, orders.InternalID("1017"), order.InternalID)
}

func TestInternalIDString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", internalIDString(nil))
	require.Equal(t, "42", internalIDString(" 42 "))
	require.Equal(t, "42", internalIDString(int64(42)))
	require.Equal(t, "42", internalIDString(float64(42)))
	require.Equal(t, "4.5", internalIDString(4.5))
}

func TestFirestoreOrdersDeletesByDocumentID(t *testing.T) {
	t.Parallel()

	source := &FirestoreOrders{}
	order := orderFromDocument("abc", orderDocument{DisplayID: "ORD-88", InternalID: int64(88)})
	require.Equal(t, orders.InternalID("88"), order.InternalID)

	source.setDocumentIDs(map[string]string{string(order.InternalID): "abc"})
	require.Equal(t, "abc", source.documentID("88"))
	require.Equal(t, "42", source.documentID("42"), "document id equals internal id")
}
