package metadata

import "solana-nft-lab/internal/runtime"

var (
	ErrAlreadyInitialized                = runtime.NewCustomError(3, "AlreadyInitialized", "already initialized")
	ErrUninitialized                     = runtime.NewCustomError(4, "Uninitialized", "uninitialized")
	ErrInvalidMetadataKey                = runtime.NewCustomError(5, "InvalidMetadataKey", "metadata's key must match seed of ['metadata', program id, mint] provided")
	ErrInvalidEditionKey                 = runtime.NewCustomError(6, "InvalidEditionKey", "edition's key must match seed of ['metadata', program id, name, 'edition'] provided")
	ErrUpdateAuthorityIncorrect          = runtime.NewCustomError(7, "UpdateAuthorityIncorrect", "update authority given does not match")
	ErrUpdateAuthorityIsNotSigner        = runtime.NewCustomError(8, "UpdateAuthorityIsNotSigner", "update authority needs to be signer to update metadata")
	ErrNotMintAuthority                  = runtime.NewCustomError(9, "NotMintAuthority", "you must be the mint authority and signer on this transaction")
	ErrInvalidMintAuthority              = runtime.NewCustomError(10, "InvalidMintAuthority", "mint authority provided does not match the authority on the mint")
	ErrNameTooLong                       = runtime.NewCustomError(11, "NameTooLong", "name too long")
	ErrSymbolTooLong                     = runtime.NewCustomError(12, "SymbolTooLong", "symbol too long")
	ErrURITooLong                        = runtime.NewCustomError(13, "UriTooLong", "uri too long")
	ErrMintMismatch                      = runtime.NewCustomError(15, "MintMismatch", "mint given does not match mint on metadata")
	ErrEditionsMustHaveExactlyOneToken   = runtime.NewCustomError(16, "EditionsMustHaveExactlyOneToken", "editions must have exactly one token")
	ErrEditionMintDecimalsShouldBeZero   = runtime.NewCustomError(24, "EditionMintDecimalsShouldBeZero", "edition mint decimals should be zero")
	ErrCreatorsTooLong                   = runtime.NewCustomError(36, "CreatorsTooLong", "creators list too long")
	ErrCreatorsMustBeAtleastOne          = runtime.NewCustomError(37, "CreatorsMustBeAtleastOne", "creators must be at least one if set")
	ErrInvalidBasisPoints                = runtime.NewCustomError(41, "InvalidBasisPoints", "basis points cannot be more than 10000")
	ErrPrimarySaleCanOnlyBeFlippedToTrue = runtime.NewCustomError(42, "PrimarySaleCanOnlyBeFlippedToTrue", "primary sale can only be flipped to true")
	ErrShareTotalMustBe100               = runtime.NewCustomError(45, "ShareTotalMustBe100", "share total must equal 100 for creator array")
	ErrIsMutableCanOnlyBeFlippedToFalse  = runtime.NewCustomError(52, "IsMutableCanOnlyBeFlippedToFalse", "is mutable can only be flipped to false")
	ErrCannotVerifyAnotherCreator        = runtime.NewCustomError(53, "CannotVerifyAnotherCreator", "you cannot unilaterally verify another creator")
	ErrDataIsImmutable                   = runtime.NewCustomError(54, "DataIsImmutable", "data is immutable")
	ErrDuplicateCreatorAddress           = runtime.NewCustomError(55, "DuplicateCreatorAddress", "no duplicate creator addresses")
)
