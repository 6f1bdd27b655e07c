package nostr

// Event kinds recognized by the pipeline
const (
	KindProfileMetadata = 0     // profile metadata (NIP-01)
	KindNote            = 1     // plain note
	KindThread          = 11    // title-bearing thread post
	KindComment         = 1111  // structured comment (NIP-22)
	KindZapReceipt      = 9735  // zap receipt (NIP-57)
	KindRelayList       = 10002 // relay list metadata (NIP-65)
)
