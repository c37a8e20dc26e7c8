package servicetype

// Known service families.
const (
	// FamilyGeneric is the fallback for orders no entry matches.
	FamilyGeneric Family = "generic"
	// FamilyLabourLicense covers labour law registrations.
	FamilyLabourLicense Family = "labour_license"
	// FamilyDrugLicense covers retail and wholesale drug licenses.
	FamilyDrugLicense Family = "drug_license"
	// FamilyFSSAILicense covers food business licenses.
	FamilyFSSAILicense Family = "fssai_license"
	// FamilyTradeLicense covers municipal trade licenses.
	FamilyTradeLicense Family = "trade_license"
	// FamilyShopEstablishment covers shop and establishment registration.
	FamilyShopEstablishment Family = "shop_establishment"
	// FamilyTrademark covers trademark applications.
	FamilyTrademark Family = "trademark"
	// FamilyCopyright covers copyright registration.
	FamilyCopyright Family = "copyright"
	// FamilyPatent covers patent filings.
	FamilyPatent Family = "patent"
	// FamilyGSTAnnualReturn covers GSTR-9 annual returns.
	FamilyGSTAnnualReturn Family = "gst_annual_return"
	// FamilyGSTMonthlyReturn covers monthly GST returns.
	FamilyGSTMonthlyReturn Family = "gst_monthly_return"
	// FamilyGSTRegistration covers new GSTIN registration.
	FamilyGSTRegistration Family = "gst_registration"
	// FamilyPrivateLimited covers private limited company incorporation.
	FamilyPrivateLimited Family = "private_limited"
	// FamilyOnePersonCompany covers one person company incorporation.
	FamilyOnePersonCompany Family = "one_person_company"
	// FamilyLLP covers limited liability partnership incorporation.
	FamilyLLP Family = "llp"
	// FamilyPartnership covers partnership firm registration.
	FamilyPartnership Family = "partnership"
	// FamilyProprietorship covers sole proprietorship registration.
	FamilyProprietorship Family = "proprietorship"
	// FamilySection8 covers section 8 non-profit companies.
	FamilySection8 Family = "section8_company"
	// FamilyNidhi covers nidhi company incorporation.
	FamilyNidhi Family = "nidhi_company"
	// FamilyProducerCompany covers producer company incorporation.
	FamilyProducerCompany Family = "producer_company"
	// FamilyImportExportCode covers IEC registration.
	FamilyImportExportCode Family = "import_export_code"
	// FamilyMSME covers Udyam registration.
	FamilyMSME Family = "msme_registration"
	// FamilyESIC covers employee state insurance registration.
	FamilyESIC Family = "esic_registration"
	// FamilyProvidentFund covers EPF registration.
	FamilyProvidentFund Family = "provident_fund"
	// FamilyProfessionalTax covers professional tax enrolment.
	FamilyProfessionalTax Family = "professional_tax"
	// FamilyIncomeTaxReturn covers income tax returns.
	FamilyIncomeTaxReturn Family = "income_tax_return"
	// FamilyTDSReturn covers quarterly TDS returns.
	FamilyTDSReturn Family = "tds_return"
	// FamilyROCFiling covers annual ROC compliance filings.
	FamilyROCFiling Family = "roc_filing"
	// FamilyISOCertification covers ISO certification.
	FamilyISOCertification Family = "iso_certification"
	// FamilyDigitalSignature covers digital signature certificates.
	FamilyDigitalSignature Family = "digital_signature"
)

var (
	licenseStatuses = []string{
		"Pending", "Documents Verified", "Application Filed", "Under Scrutiny", "Approved", "Completed", "Rejected",
	}
	incorporationStatuses = []string{
		"Pending", "Documents Verified", "Name Reserved", "DSC Applied", "Incorporation Filed", "Certificate Issued", "Completed", "Rejected",
	}
	firmStatuses = []string{
		"Pending", "Documents Verified", "Deed Drafted", "Registration Filed", "Certificate Issued", "Completed", "Rejected",
	}
	gstRegistrationStatuses = []string{
		"Pending", "Documents Verified", "ARN Generated", "GSTIN Issued", "Completed", "Rejected",
	}
	gstAnnualStatuses = []string{
		"Pending", "Data Verified", "Reconciliation Done", "Annual Return Prepared", "Filed", "Completed", "Rejected",
	}
	gstMonthlyStatuses = []string{
		"Pending", "Data Verified", "GSTR-1 Filed", "GSTR-3B Filed", "Completed", "Rejected",
	}
	intellectualPropertyStatuses = []string{
		"Pending", "Search Completed", "Application Filed", "Examination", "Objection Raised", "Registered", "Rejected",
	}
	returnStatuses = []string{
		"Pending", "Data Verified", "Return Prepared", "Filed", "Acknowledged", "Completed", "Rejected",
	}
	certificationStatuses = []string{
		"Pending", "Documents Verified", "Application Submitted", "Certificate Issued", "Completed", "Rejected",
	}
	genericStatuses = []string{
		"Pending", "Processing", "Documents Verified", "In Progress", "Completed", "Rejected", "Cancelled",
	}
)

type familySpec struct {
	family    Family
	label     string
	operation string
	id        IDSelector
	statuses  []string
}

func (s familySpec) prefix(pattern string) Entry {
	return s.entry(Match{Kind: MatchDisplayPrefix, Pattern: pattern})
}

func (s familySpec) name(pattern string) Entry {
	return s.entry(Match{Kind: MatchServiceName, Pattern: pattern})
}

func (s familySpec) entry(match Match) Entry {
	return Entry{
		Family:    s.family,
		Label:     s.label,
		Match:     match,
		Operation: s.operation,
		ID:        s.id,
		Statuses:  s.statuses,
	}
}

var (
	labour        = familySpec{FamilyLabourLicense, "Labour License", "labour-license", SelectDisplayIDStripped, licenseStatuses}
	drug          = familySpec{FamilyDrugLicense, "Drug License", "drug-license", SelectDisplayIDStripped, licenseStatuses}
	fssai         = familySpec{FamilyFSSAILicense, "FSSAI License", "fssai-license", SelectDisplayIDStripped, licenseStatuses}
	trade         = familySpec{FamilyTradeLicense, "Trade License", "trade-license", SelectDisplayIDStripped, licenseStatuses}
	shop          = familySpec{FamilyShopEstablishment, "Shop & Establishment", "shop-establishment", SelectDisplayIDStripped, licenseStatuses}
	trademark     = familySpec{FamilyTrademark, "Trademark Registration", "trademark", SelectSubmissionID, intellectualPropertyStatuses}
	copyright     = familySpec{FamilyCopyright, "Copyright Registration", "copyright", SelectSubmissionID, intellectualPropertyStatuses}
	patent        = familySpec{FamilyPatent, "Patent Filing", "patent", SelectSubmissionID, intellectualPropertyStatuses}
	gstAnnual     = familySpec{FamilyGSTAnnualReturn, "GST Annual Return", "gst-annual-return", SelectDisplayIDStripped, gstAnnualStatuses}
	gstMonthly    = familySpec{FamilyGSTMonthlyReturn, "GST Monthly Return", "gst-monthly-return", SelectDisplayIDStripped, gstMonthlyStatuses}
	gst           = familySpec{FamilyGSTRegistration, "GST Registration", "gst-registration", SelectInternalID, gstRegistrationStatuses}
	privateLtd    = familySpec{FamilyPrivateLimited, "Private Limited Company", "private-limited", SelectInternalID, incorporationStatuses}
	opc           = familySpec{FamilyOnePersonCompany, "One Person Company", "one-person-company", SelectInternalID, incorporationStatuses}
	llp           = familySpec{FamilyLLP, "Limited Liability Partnership", "llp", SelectInternalID, incorporationStatuses}
	partnership   = familySpec{FamilyPartnership, "Partnership Firm", "partnership", SelectInternalID, firmStatuses}
	proprietor    = familySpec{FamilyProprietorship, "Proprietorship", "proprietorship", SelectInternalID, firmStatuses}
	section8      = familySpec{FamilySection8, "Section 8 Company", "section8-company", SelectInternalID, incorporationStatuses}
	nidhi         = familySpec{FamilyNidhi, "Nidhi Company", "nidhi-company", SelectInternalID, incorporationStatuses}
	producer      = familySpec{FamilyProducerCompany, "Producer Company", "producer-company", SelectInternalID, incorporationStatuses}
	iec           = familySpec{FamilyImportExportCode, "Import Export Code", "import-export-code", SelectDisplayIDStripped, certificationStatuses}
	msme          = familySpec{FamilyMSME, "MSME / Udyam Registration", "msme-registration", SelectDisplayIDStripped, certificationStatuses}
	esic          = familySpec{FamilyESIC, "ESIC Registration", "esic-registration", SelectInternalID, certificationStatuses}
	providentFund = familySpec{FamilyProvidentFund, "Provident Fund Registration", "pf-registration", SelectInternalID, certificationStatuses}
	profTax       = familySpec{FamilyProfessionalTax, "Professional Tax", "professional-tax", SelectDisplayIDStripped, returnStatuses}
	incomeTax     = familySpec{FamilyIncomeTaxReturn, "Income Tax Return", "income-tax-return", SelectDisplayIDStripped, returnStatuses}
	tds           = familySpec{FamilyTDSReturn, "TDS Return", "tds-return", SelectDisplayIDStripped, returnStatuses}
	roc           = familySpec{FamilyROCFiling, "ROC Annual Filing", "roc-filing", SelectInternalID, returnStatuses}
	iso           = familySpec{FamilyISOCertification, "ISO Certification", "iso-certification", SelectDisplayIDStripped, certificationStatuses}
	dsc           = familySpec{FamilyDigitalSignature, "Digital Signature Certificate", "digital-signature", SelectDisplayIDStripped, certificationStatuses}

	generic = familySpec{FamilyGeneric, "General Service", "orders", SelectInternalID, genericStatuses}
)

// DefaultEntries returns the production dispatch table. Order matters: every
// specific pattern precedes the generic patterns it contains.
func DefaultEntries() []Entry {
	return []Entry{
		labour.prefix("LAB-"),
		drug.prefix("DRUG-"),
		fssai.prefix("FSSAI-"),
		trade.prefix("TL-"),
		shop.prefix("SHOP-"),
		trademark.prefix("TM-"),
		copyright.prefix("COPY-"),
		patent.prefix("PAT-"),
		gstAnnual.prefix("GST-ANNUAL-"),
		gstMonthly.prefix("GST-MONTHLY-"),
		gst.prefix("GST-"),
		privateLtd.prefix("PVT-"),
		opc.prefix("OPC-"),
		llp.prefix("LLP-"),
		partnership.prefix("PART-"),
		proprietor.prefix("PROP-"),
		section8.prefix("SEC8-"),
		nidhi.prefix("NIDHI-"),
		producer.prefix("PROD-"),
		iec.prefix("IEC-"),
		msme.prefix("MSME-"),
		esic.prefix("ESI-"),
		providentFund.prefix("EPF-"),
		profTax.prefix("PT-"),
		incomeTax.prefix("ITR-"),
		tds.prefix("TDS-"),
		roc.prefix("ROC-"),
		iso.prefix("ISO-"),
		dsc.prefix("DSC-"),

		privateLtd.name("private limited"),
		opc.name("one person company"),
		gstAnnual.name("gst annual"),
		gstMonthly.name("gst monthly"),
		gst.name("gst"),
		llp.name("limited liability partnership"),
		llp.name("llp"),
		partnership.name("partnership"),
		proprietor.name("proprietorship"),
		section8.name("section 8"),
		nidhi.name("nidhi"),
		producer.name("producer company"),
		trademark.name("trademark"),
		copyright.name("copyright"),
		patent.name("patent"),
		fssai.name("fssai"),
		fssai.name("food license"),
		drug.name("drug license"),
		labour.name("labour license"),
		trade.name("trade license"),
		shop.name("shop act"),
		shop.name("shop and establishment"),
		iec.name("import export"),
		msme.name("udyam"),
		msme.name("msme"),
		esic.name("esic"),
		providentFund.name("provident fund"),
		profTax.name("professional tax"),
		incomeTax.name("income tax return"),
		tds.name("tds return"),
		roc.name("roc filing"),
		iso.name("iso certification"),
		dsc.name("digital signature"),
	}
}

// FallbackEntry returns the generic entry used when no predicate matches.
func FallbackEntry() Entry {
	return generic.entry(Match{})
}

// Default returns a registry loaded with the production dispatch table.
func Default() *Registry {
	return New(DefaultEntries(), FallbackEntry())
}
