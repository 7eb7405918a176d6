package metadata

import (
	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/programs/token"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// Program is the token metadata program.
type Program struct{}

// New returns the token metadata program.
func New() *Program { return &Program{} }

var _ runtime.Program = (*Program)(nil)

func (p *Program) ID() solana.PublicKey { return solana.MetadataProgramID }
func (p *Program) Name() string         { return "metadata" }

func (p *Program) Process(ic *runtime.InvokeContext, data []byte) error {
	if len(data) == 0 {
		return runtime.ErrInvalidInstructionData
	}

	switch data[0] {
	case InstructionCreateMetadataAccountV3:
		args, err := decodeCreateMetadataAccountArgsV3(data)
		if err != nil {
			return runtime.ErrInvalidInstructionData
		}
		ic.Log("Instruction: Create Metadata Accounts v3")
		return p.createMetadataAccount(ic, args)
	case InstructionCreateMasterEditionV3:
		args, err := decodeCreateMasterEditionArgs(data)
		if err != nil {
			return runtime.ErrInvalidInstructionData
		}
		ic.Log("V3 Create Master Edition")
		return p.createMasterEdition(ic, args)
	case InstructionUpdateMetadataAccountV2:
		args, err := decodeUpdateMetadataAccountArgsV2(data)
		if err != nil {
			return runtime.ErrInvalidInstructionData
		}
		ic.Log("Instruction: Update Metadata Accounts v2")
		return p.updateMetadataAccount(ic, args)
	default:
		return runtime.ErrInvalidInstructionData
	}
}

func (p *Program) createMetadataAccount(ic *runtime.InvokeContext, args createMetadataAccountArgsV3) error {
	if err := ic.RequireAccounts(6); err != nil {
		return err
	}
	accts := ic.Accounts()
	metadataAddr, mintAddr := accts[0].PublicKey, accts[1].PublicKey
	mintAuthority, payer, updateAuthority := accts[2].PublicKey, accts[3].PublicKey, accts[4].PublicKey

	derived, bump, err := solana.FindMetadataAddress(mintAddr)
	if err != nil || derived != metadataAddr {
		return ErrInvalidMetadataKey
	}

	mint, err := p.loadMint(ic, mintAddr)
	if err != nil {
		return err
	}
	if err := assertMintAuthority(ic, mint, mintAuthority); err != nil {
		return err
	}
	if !ic.IsSigner(payer) {
		return runtime.ErrMissingRequiredSignature
	}

	existing, err := ic.Load(metadataAddr)
	if err != nil {
		return err
	}
	if existing != nil && len(existing.Data) > 0 {
		return ErrAlreadyInitialized
	}

	if err := validateData(ic, args.Data, updateAuthority, nil); err != nil {
		return err
	}

	seeds := [][]byte{[]byte("metadata"), solana.MetadataProgramID[:], mintAddr[:], {bump}}
	if err := ic.Invoke(system.CreateAccount(payer, metadataAddr,
		runtime.RentExemptMinimum(MaxMetadataLen), MaxMetadataLen, solana.MetadataProgramID), seeds); err != nil {
		return err
	}

	md := &Metadata{
		Key:             KeyMetadataV1,
		UpdateAuthority: updateAuthority,
		Mint:            mintAddr,
		IsMutable:       args.IsMutable,
		Collection:      args.Data.Collection,
		Uses:            args.Data.Uses,
	}
	setData(md, args.Data)

	_, editionBump, err := solana.FindMasterEditionAddress(mintAddr)
	if err != nil {
		return runtime.ErrInvalidSeeds
	}
	md.EditionNonce = &editionBump

	standard := Fungible
	if mint.Decimals == 0 {
		standard = FungibleAsset
	}
	md.TokenStandard = &standard

	return p.storeMetadata(ic, metadataAddr, md)
}

func (p *Program) createMasterEdition(ic *runtime.InvokeContext, args createMasterEditionArgs) error {
	if err := ic.RequireAccounts(8); err != nil {
		return err
	}
	accts := ic.Accounts()
	editionAddr, mintAddr := accts[0].PublicKey, accts[1].PublicKey
	updateAuthority, mintAuthority, payer := accts[2].PublicKey, accts[3].PublicKey, accts[4].PublicKey
	metadataAddr := accts[5].PublicKey
	if accts[6].PublicKey != solana.TokenProgramID {
		return runtime.ErrIncorrectProgramID
	}

	derived, bump, err := solana.FindMasterEditionAddress(mintAddr)
	if err != nil || derived != editionAddr {
		return ErrInvalidEditionKey
	}

	md, err := p.loadMetadata(ic, metadataAddr)
	if err != nil {
		return err
	}
	if md.Mint != mintAddr {
		return ErrMintMismatch
	}
	if err := assertUpdateAuthority(ic, md, updateAuthority); err != nil {
		return err
	}

	mint, err := p.loadMint(ic, mintAddr)
	if err != nil {
		return err
	}
	if err := assertMintAuthority(ic, mint, mintAuthority); err != nil {
		return err
	}
	if mint.Decimals != 0 {
		return ErrEditionMintDecimalsShouldBeZero
	}
	if mint.Supply != 1 {
		ic.Log("Supply of the mint must be exactly 1, got %d", mint.Supply)
		return ErrEditionsMustHaveExactlyOneToken
	}
	if !ic.IsSigner(payer) {
		return runtime.ErrMissingRequiredSignature
	}

	existing, err := ic.Load(editionAddr)
	if err != nil {
		return err
	}
	if existing != nil && len(existing.Data) > 0 {
		return ErrAlreadyInitialized
	}

	seeds := [][]byte{[]byte("metadata"), solana.MetadataProgramID[:], mintAddr[:], []byte("edition"), {bump}}
	if err := ic.Invoke(system.CreateAccount(payer, editionAddr,
		runtime.RentExemptMinimum(MaxMasterEditionLen), MaxMasterEditionLen, solana.MetadataProgramID), seeds); err != nil {
		return err
	}

	edition := &MasterEdition{Key: KeyMasterEditionV2, MaxSupply: args.MaxSupply}
	acct, err := ic.Load(editionAddr)
	if err != nil {
		return err
	}
	acct.Data = edition.Pack()
	if err := ic.Store(editionAddr, acct); err != nil {
		return err
	}

	// The edition becomes the only authority of the mint.
	if err := ic.Invoke(token.SetAuthority(mintAddr, mintAuthority, token.AuthorityMintTokens, &editionAddr)); err != nil {
		return err
	}
	if mint.FreezeAuthority != nil {
		if err := ic.Invoke(token.SetAuthority(mintAddr, mintAuthority, token.AuthorityFreezeAccount, &editionAddr)); err != nil {
			return err
		}
	}

	standard := NonFungible
	md.TokenStandard = &standard
	return p.storeMetadata(ic, metadataAddr, md)
}

func (p *Program) updateMetadataAccount(ic *runtime.InvokeContext, args updateMetadataAccountArgsV2) error {
	if err := ic.RequireAccounts(2); err != nil {
		return err
	}
	metadataAddr, updateAuthority := ic.Accounts()[0].PublicKey, ic.Accounts()[1].PublicKey

	md, err := p.loadMetadata(ic, metadataAddr)
	if err != nil {
		return err
	}
	if err := assertUpdateAuthority(ic, md, updateAuthority); err != nil {
		return err
	}

	if args.Data != nil {
		if !md.IsMutable {
			return ErrDataIsImmutable
		}
		if err := validateData(ic, *args.Data, updateAuthority, md.Creators); err != nil {
			return err
		}
		setData(md, *args.Data)
		md.Collection = args.Data.Collection
		md.Uses = args.Data.Uses
	}
	if args.UpdateAuthority != nil {
		md.UpdateAuthority = solana.PublicKey(*args.UpdateAuthority)
	}
	if args.PrimarySaleHappened != nil {
		if !*args.PrimarySaleHappened && md.PrimarySaleHappened {
			return ErrPrimarySaleCanOnlyBeFlippedToTrue
		}
		md.PrimarySaleHappened = *args.PrimarySaleHappened
	}
	if args.IsMutable != nil {
		if *args.IsMutable && !md.IsMutable {
			return ErrIsMutableCanOnlyBeFlippedToFalse
		}
		md.IsMutable = *args.IsMutable
	}

	return p.storeMetadata(ic, metadataAddr, md)
}

func setData(md *Metadata, data DataV2) {
	md.Name = data.Name
	md.Symbol = data.Symbol
	md.URI = data.URI
	md.SellerFeeBasisPoints = data.SellerFeeBasisPoints
	md.Creators = nil
	if data.Creators != nil {
		md.Creators = append([]Creator{}, (*data.Creators)...)
	}
}

// validateData checks field limits and creator shares. A creator may only be
// marked verified by itself as the signing update authority, or if it was
// already verified in existing.
func validateData(ic *runtime.InvokeContext, data DataV2, updateAuthority solana.PublicKey, existing []Creator) error {
	switch {
	case len(data.Name) > MaxNameLength:
		return ErrNameTooLong
	case len(data.Symbol) > MaxSymbolLength:
		return ErrSymbolTooLong
	case len(data.URI) > MaxURILength:
		return ErrURITooLong
	case data.SellerFeeBasisPoints > MaxBasisPoints:
		return ErrInvalidBasisPoints
	}
	if data.Creators == nil {
		return nil
	}

	creators := *data.Creators
	if len(creators) > MaxCreatorLimit {
		return ErrCreatorsTooLong
	}
	if len(creators) == 0 {
		return ErrCreatorsMustBeAtleastOne
	}

	wasVerified := make(map[[32]uint8]bool, len(existing))
	for _, c := range existing {
		wasVerified[c.Address] = c.Verified
	}

	seen := make(map[[32]uint8]bool, len(creators))
	total := 0
	for _, c := range creators {
		if seen[c.Address] {
			return ErrDuplicateCreatorAddress
		}
		seen[c.Address] = true
		total += int(c.Share)

		if !c.Verified || wasVerified[c.Address] {
			continue
		}
		if solana.PublicKey(c.Address) != updateAuthority || !ic.IsSigner(updateAuthority) {
			return ErrCannotVerifyAnotherCreator
		}
	}
	if total != 100 {
		return ErrShareTotalMustBe100
	}
	return nil
}

func assertMintAuthority(ic *runtime.InvokeContext, mint *token.Mint, authority solana.PublicKey) error {
	if mint.MintAuthority == nil || *mint.MintAuthority != authority {
		return ErrInvalidMintAuthority
	}
	if !ic.IsSigner(authority) {
		return ErrNotMintAuthority
	}
	return nil
}

func assertUpdateAuthority(ic *runtime.InvokeContext, md *Metadata, authority solana.PublicKey) error {
	if md.UpdateAuthority != authority {
		return ErrUpdateAuthorityIncorrect
	}
	if !ic.IsSigner(authority) {
		return ErrUpdateAuthorityIsNotSigner
	}
	return nil
}

func (p *Program) loadMint(ic *runtime.InvokeContext, addr solana.PublicKey) (*token.Mint, error) {
	acct, err := ic.Load(addr)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Owner != solana.TokenProgramID {
		return nil, runtime.ErrIncorrectProgramID
	}
	mint, err := token.UnpackMint(acct.Data)
	if err != nil {
		return nil, runtime.ErrInvalidAccountData
	}
	if !mint.IsInitialized {
		return nil, ErrUninitialized
	}
	return mint, nil
}

func (p *Program) loadMetadata(ic *runtime.InvokeContext, addr solana.PublicKey) (*Metadata, error) {
	acct, err := ic.Load(addr)
	if err != nil {
		return nil, err
	}
	if acct == nil || len(acct.Data) == 0 {
		return nil, ErrUninitialized
	}
	if acct.Owner != solana.MetadataProgramID {
		return nil, runtime.ErrIncorrectProgramID
	}
	md, err := UnpackMetadata(acct.Data)
	if err != nil {
		return nil, ErrInvalidMetadataKey
	}
	return md, nil
}

func (p *Program) storeMetadata(ic *runtime.InvokeContext, addr solana.PublicKey, md *Metadata) error {
	acct, err := ic.Load(addr)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &domain.Account{Owner: solana.MetadataProgramID}
	}
	acct.Data = md.Pack()
	return ic.Store(addr, acct)
}
