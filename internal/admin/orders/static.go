package orders

import "time"

// SampleOrders returns deterministic orders suitable for local development and tests.
func SampleOrders(now time.Time) []Order {
	makeOrder := func(base Order) Order {
		if base.Currency == "" {
			base.Currency = defaultCurrency
		}
		if base.UpdatedAt.IsZero() {
			base.UpdatedAt = base.CreatedAt
		}
		return base
	}

	return []Order{
		makeOrder(Order{
			DisplayID:   "GST-ANNUAL-9",
			InternalID:  "9",
			ServiceName: "GST Annual Return",
			Status:      "Data Verified",
			ClientName:  "Meera Traders",
			ClientEmail: "accounts@meeratraders.example.com",
			AmountMinor: 499900,
			CreatedAt:   now.Add(-50 * time.Hour),
			UpdatedAt:   now.Add(-3 * time.Hour),
			FormData:    map[string]any{"gstin": "27AAPFU0939F1ZV", "financialYear": "2024-25"},
		}),
		makeOrder(Order{
			DisplayID:    "ORD-88",
			InternalID:   "88",
			SubmissionID: "SUB-88",
			ServiceName:  "Private Limited Company Registration",
			Status:       "Name Reserved",
			ClientName:   "Arjun Nair",
			ClientEmail:  "arjun.nair@example.com",
			AmountMinor:  1299900,
			CreatedAt:    now.Add(-96 * time.Hour),
			UpdatedAt:    now.Add(-20 * time.Hour),
			UploadedDocuments: map[string]any{
				"pan":     "pan-arjun.pdf",
				"aadhaar": "aadhaar-arjun.pdf",
			},
		}),
		makeOrder(Order{
			DisplayID:   "TL-17",
			InternalID:  "1017",
			ServiceName: "Trade License",
			Status:      "Application Filed",
			ClientName:  "Sai Kitchens",
			ClientEmail: "owner@saikitchens.example.com",
			AmountMinor: 349900,
			CreatedAt:   now.Add(-30 * time.Hour),
		}),
		makeOrder(Order{
			DisplayID:    "TM-8",
			InternalID:   "8",
			SubmissionID: "TMSUB-2024-8",
			ServiceName:  "Trademark Registration",
			Status:       "Examination",
			ClientName:   "Lotus Ayurveda LLP",
			ClientEmail:  "legal@lotusayurveda.example.com",
			AmountMinor:  899900,
			CreatedAt:    now.Add(-240 * time.Hour),
			UpdatedAt:    now.Add(-72 * time.Hour),
		}),
		makeOrder(Order{
			DisplayID:   "ORD-42",
			InternalID:  "42",
			ServiceName: "LLP Registration",
			Status:      "Completed",
			ClientName:  "Kapoor & Iyer",
			ClientEmail: "partners@kapooriyer.example.com",
			AmountMinor: 799900,
			CreatedAt:   now.Add(-400 * time.Hour),
			UpdatedAt:   now.Add(-120 * time.Hour),
			GeneratedDocuments: map[string]any{
				"incorporationCertificate": "llp-coi-42.pdf",
			},
		}),
		makeOrder(Order{
			DisplayID:   "GST-MONTHLY-12",
			InternalID:  "12",
			ServiceName: "GST Monthly Return",
			Status:      "Pending",
			ClientName:  "Meera Traders",
			ClientEmail: "accounts@meeratraders.example.com",
			AmountMinor: 99900,
			CreatedAt:   now.Add(-6 * time.Hour),
		}),
		makeOrder(Order{
			DisplayID:   "ORD-57",
			InternalID:  "57",
			ServiceName: "Website Design",
			Status:      "Rejected",
			ClientName:  "Pixel Forge",
			ClientEmail: "hello@pixelforge.example.com",
			AmountMinor: 150000,
			CreatedAt:   now.Add(-12 * time.Hour),
		}),
	}
}
