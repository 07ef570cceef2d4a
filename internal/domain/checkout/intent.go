package checkout

// Intent is what the server asks the provider to charge. It is built from
// configuration only and is discarded once the provider session exists.
type Intent struct {
	AmountMinorUnits int64
	Currency         string
	Description      string
	SuccessURL       string
	CancelURL        string
	Metadata         map[string]string
}

// MetadataCheckoutRef correlates a provider session with the request that
// created it.
const MetadataCheckoutRef = "checkout_ref"
