package domain

// EventKind classifies lifecycle events.
type EventKind string

const (
	EventMintInitialized EventKind = "MINT_INITIALIZED"
	EventHolderCreated   EventKind = "HOLDER_CREATED"
	EventMinted          EventKind = "MINTED"
	EventMetadataUpdated EventKind = "METADATA_UPDATED"
	EventTransferred     EventKind = "TRANSFERRED"
)

// NftEvent is one state transition of an NFT, emitted by the lifecycle program.
// Corresponds to the nft_events table in ClickHouse.
type NftEvent struct {
	EventID   string    // UUID
	Signature string    // transaction signature
	Slot      uint64    // slot the transaction landed in
	Index     int       // order within the transaction
	Kind      EventKind // MINT_INITIALIZED | HOLDER_CREATED | MINTED | METADATA_UPDATED | TRANSFERRED
	Mint      string    // mint address
	Authority string    // signer that authorized the transition
	From      string    // source holder account (transfers)
	To        string    // destination holder account (holder creation, mint, transfers)
	Name      string    // metadata name (mint, update)
	Symbol    string    // metadata symbol (mint, update)
	URI       string    // metadata uri (mint, update)
	Timestamp int64     // Unix timestamp in milliseconds
}
