package servicetype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryHasNoShadowedEntries(t *testing.T) {
	t.Parallel()

	reg := Default()
	require.NoError(t, reg.Validate())

	for _, entry := range reg.Entries() {
		require.NotEmpty(t, entry.Statuses, "family %s has no statuses", entry.Family)
		require.NotEmpty(t, entry.Operation, "family %s has no operation", entry.Family)
	}
	require.NotEmpty(t, reg.Fallback().Statuses)
}

func TestValidateDetectsGenericBeforeSpecific(t *testing.T) {
	t.Parallel()

	reg := New([]Entry{
		gst.name("gst"),
		gstAnnual.name("gst annual"),
	}, FallbackEntry())

	err := reg.Validate()
	require.Error(t, err)
	var shadow *ShadowError
	require.ErrorAs(t, err, &shadow)
	require.Equal(t, FamilyGSTAnnualReturn, shadow.Shadowed.Family)
	require.Equal(t, FamilyGSTRegistration, shadow.By.Family)

	reg = New([]Entry{
		gst.prefix("GST-"),
		gstAnnual.prefix("GST-ANNUAL-"),
	}, FallbackEntry())
	require.ErrorAs(t, reg.Validate(), &shadow)
}

func TestResolveByDisplayPrefix(t *testing.T) {
	t.Parallel()

	reg := Default()
	cases := map[string]Family{
		"LAB-3":          FamilyLabourLicense,
		"DRUG-11":        FamilyDrugLicense,
		"FSSAI-2":        FamilyFSSAILicense,
		"TL-17":          FamilyTradeLicense,
		"SHOP-5":         FamilyShopEstablishment,
		"TM-8":           FamilyTrademark,
		"COPY-4":         FamilyCopyright,
		"PAT-9":          FamilyPatent,
		"GST-ANNUAL-9":   FamilyGSTAnnualReturn,
		"gst-annual-10":  FamilyGSTAnnualReturn,
		"GST-MONTHLY-12": FamilyGSTMonthlyReturn,
		"GST-77":         FamilyGSTRegistration,
		"PVT-1":          FamilyPrivateLimited,
		"OPC-2":          FamilyOnePersonCompany,
		"LLP-3":          FamilyLLP,
		"PART-4":         FamilyPartnership,
		"PROP-5":         FamilyProprietorship,
		"SEC8-6":         FamilySection8,
		"NIDHI-7":        FamilyNidhi,
		"PROD-8":         FamilyProducerCompany,
		"IEC-9":          FamilyImportExportCode,
		"MSME-10":        FamilyMSME,
		"ESI-11":         FamilyESIC,
		"EPF-12":         FamilyProvidentFund,
		"PT-13":          FamilyProfessionalTax,
		"ITR-14":         FamilyIncomeTaxReturn,
		"TDS-15":         FamilyTDSReturn,
		"ROC-16":         FamilyROCFiling,
		"ISO-17":         FamilyISOCertification,
		"DSC-18":         FamilyDigitalSignature,
	}
	for display, want := range cases {
		got := reg.Resolve(Ref{DisplayID: display, ServiceName: "Private Limited Company"})
		require.Equal(t, want, got.Family, "display id %s", display)
	}
}

func TestResolveByServiceName(t *testing.T) {
	t.Parallel()

	reg := Default()
	cases := map[string]Family{
		"Private Limited Company Registration": FamilyPrivateLimited,
		"One Person Company":                   FamilyOnePersonCompany,
		"GST Annual Return":                    FamilyGSTAnnualReturn,
		"GST Annual Return (GSTR-9)":           FamilyGSTAnnualReturn,
		"GST Monthly Return":                   FamilyGSTMonthlyReturn,
		"GST Registration":                     FamilyGSTRegistration,
		"GST LUT Filing":                       FamilyGSTRegistration,
		"Limited Liability Partnership":        FamilyLLP,
		"LLP Registration":                     FamilyLLP,
		"Partnership Firm Registration":        FamilyPartnership,
		"Sole Proprietorship":                  FamilyProprietorship,
		"Section 8 Company":                    FamilySection8,
		"Nidhi Company":                        FamilyNidhi,
		"Producer Company":                     FamilyProducerCompany,
		"Trademark Registration":               FamilyTrademark,
		"Copyright Registration":               FamilyCopyright,
		"Patent Filing":                        FamilyPatent,
		"FSSAI Basic Registration":             FamilyFSSAILicense,
		"Food License":                         FamilyFSSAILicense,
		"Drug License":                         FamilyDrugLicense,
		"Labour License":                       FamilyLabourLicense,
		"Trade License":                        FamilyTradeLicense,
		"Shop Act Registration":                FamilyShopEstablishment,
		"Import Export Code":                   FamilyImportExportCode,
		"Udyam Registration":                   FamilyMSME,
		"MSME Registration":                    FamilyMSME,
		"ESIC Registration":                    FamilyESIC,
		"Provident Fund Registration":          FamilyProvidentFund,
		"Professional Tax Registration":        FamilyProfessionalTax,
		"Income Tax Return":                    FamilyIncomeTaxReturn,
		"TDS Return Filing":                    FamilyTDSReturn,
		"ROC Filing":                           FamilyROCFiling,
		"ISO Certification":                    FamilyISOCertification,
		"Digital Signature Certificate":        FamilyDigitalSignature,
	}
	for name, want := range cases {
		got := reg.Resolve(Ref{DisplayID: "ORD-42", ServiceName: name})
		require.Equal(t, want, got.Family, "service name %q", name)
	}
}

func TestResolveSpecificGSTPatternsWinOverGeneric(t *testing.T) {
	t.Parallel()

	reg := Default()

	annual := reg.Resolve(Ref{DisplayID: "ORD-1", ServiceName: "gst annual return"})
	require.Equal(t, FamilyGSTAnnualReturn, annual.Family)
	require.Equal(t, "gst-annual-return", annual.Operation)

	monthly := reg.Resolve(Ref{DisplayID: "ORD-1", ServiceName: "GST MONTHLY RETURN"})
	require.Equal(t, FamilyGSTMonthlyReturn, monthly.Family)

	generic := reg.Resolve(Ref{DisplayID: "ORD-1", ServiceName: "GST"})
	require.Equal(t, FamilyGSTRegistration, generic.Family)
}

func TestResolveFallsBackToGeneric(t *testing.T) {
	t.Parallel()

	reg := Default()
	for _, ref := range []Ref{
		{},
		{DisplayID: "ORD-42"},
		{DisplayID: "ORD-42", ServiceName: "Website Design"},
		{ServiceName: "   "},
	} {
		got := reg.Resolve(ref)
		require.Equal(t, FamilyGeneric, got.Family, "ref %+v", ref)
		require.Equal(t, "orders", got.Operation)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()

	reg := Default()
	ref := Ref{DisplayID: "ORD-5", ServiceName: "Private Limited to LLP conversion"}
	first := reg.Resolve(ref)
	for i := 0; i < 20; i++ {
		require.Equal(t, first.Family, reg.Resolve(ref).Family)
	}
	require.Equal(t, FamilyPrivateLimited, first.Family)
}

func TestSelectID(t *testing.T) {
	t.Parallel()

	reg := Default()
	ref := Ref{DisplayID: "GST-ANNUAL-9", InternalID: "9", SubmissionID: "SUB-9"}

	annual := reg.Resolve(ref)
	require.Equal(t, "9", annual.SelectID(ref))

	byName := reg.Resolve(Ref{DisplayID: "ORD-31", ServiceName: "GST Annual Return"})
	require.Equal(t, "31", byName.SelectID(Ref{DisplayID: "ORD-31", InternalID: "1031"}))

	tm := reg.Resolve(Ref{DisplayID: "TM-8"})
	require.Equal(t, "SUB-8", tm.SelectID(Ref{DisplayID: "TM-8", InternalID: "8", SubmissionID: "SUB-8"}))
	require.Equal(t, "8", tm.SelectID(Ref{DisplayID: "TM-8", InternalID: "8"}))

	pvt := reg.Resolve(Ref{DisplayID: "PVT-1"})
	require.Equal(t, "501", pvt.SelectID(Ref{DisplayID: "PVT-1", InternalID: " 501 "}))

	display := Entry{ID: SelectDisplayID}
	require.Equal(t, "ORD-7", display.SelectID(Ref{DisplayID: " ORD-7 "}))
	require.Equal(t, "12", display.SelectID(Ref{InternalID: "12"}))
}

func TestSelectIDFallsBackToInternalIDWithoutDisplayID(t *testing.T) {
	t.Parallel()

	reg := Default()
	ref := Ref{InternalID: "77", ServiceName: "GST Annual Return"}
	entry := reg.Resolve(ref)
	require.Equal(t, FamilyGSTAnnualReturn, entry.Family)
	require.Equal(t, SelectDisplayIDStripped, entry.ID)
	require.Equal(t, "77", entry.SelectID(ref))
}

func TestEntryAllowsAndCanonical(t *testing.T) {
	t.Parallel()

	reg := Default()
	entry, ok := reg.Lookup(FamilyGSTAnnualReturn)
	require.True(t, ok)
	require.True(t, entry.Allows("annual return prepared"))
	require.Equal(t, "Annual Return Prepared", entry.Canonical(" annual return prepared "))
	require.False(t, entry.Allows("GSTIN Issued"))
	require.Equal(t, "Unknown", entry.Canonical("Unknown"))

	statuses := reg.Statuses(FamilyGSTAnnualReturn)
	statuses[0] = "mutated"
	require.Equal(t, "Pending", reg.Statuses(FamilyGSTAnnualReturn)[0])
	require.Nil(t, reg.Statuses(Family("missing")))
}
