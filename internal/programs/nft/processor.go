package nft

import (
	"github.com/near/borsh-go"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/programs/associated"
	"solana-nft-lab/internal/programs/metadata"
	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/programs/token"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// Program is the NFT lifecycle program.
type Program struct{}

// New returns the lifecycle program.
func New() *Program { return &Program{} }

var _ runtime.Program = (*Program)(nil)

func (p *Program) ID() solana.PublicKey { return ProgramID }
func (p *Program) Name() string         { return "nft" }

type handler struct {
	name    string // log label
	hasArgs bool
	run     func(p *Program, ic *runtime.InvokeContext, args MetadataArgs) error
}

var handlers = map[[8]byte]handler{
	Discriminator(InstructionInitializeNft):     {name: "InitializeNft", run: (*Program).initializeNft},
	Discriminator(InstructionCreateNftHolder):   {name: "CreateNftHolder", run: (*Program).createNftHolder},
	Discriminator(InstructionMintNft):           {name: "MintNft", hasArgs: true, run: (*Program).mintNft},
	Discriminator(InstructionTransferNft):       {name: "TransferNft", run: (*Program).transferNft},
	Discriminator(InstructionCreateNft):         {name: "CreateNft", hasArgs: true, run: (*Program).createNft},
	Discriminator(InstructionUpdateNftMetadata): {name: "UpdateNftMetadata", hasArgs: true, run: (*Program).updateNftMetadata},
}

// Process dispatches on the discriminator and logs program errors the way
// Anchor does.
func (p *Program) Process(ic *runtime.InvokeContext, data []byte) error {
	err := p.dispatch(ic, data)
	if e := ownError(err); e != nil {
		ic.Log("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", e.Name, e.Code, e.Msg)
	}
	return err
}

func (p *Program) dispatch(ic *runtime.InvokeContext, data []byte) error {
	if len(data) < 8 {
		return ErrInstructionMissing
	}
	var disc [8]byte
	copy(disc[:], data[:8])

	h, ok := handlers[disc]
	if !ok {
		return ErrInstructionFallbackNotFound
	}
	ic.Log("Instruction: %s", h.name)

	var args MetadataArgs
	if h.hasArgs {
		if err := borsh.Deserialize(&args, data[8:]); err != nil {
			return ErrInstructionDidNotDeserialize
		}
	}
	return h.run(p, ic, args)
}

// accountSpec is the declared role of one instruction account.
type accountSpec struct {
	signer   bool
	writable bool
	program  *solana.PublicKey // expected address of a program or sysvar
}

var (
	mutSigner = accountSpec{signer: true, writable: true}
	mut       = accountSpec{writable: true}
)

func programAccount(id solana.PublicKey) accountSpec {
	return accountSpec{program: &id}
}

// validate checks the account list against specs before any state is read.
func validate(ic *runtime.InvokeContext, specs ...accountSpec) error {
	if len(ic.Accounts()) < len(specs) {
		return ErrAccountNotEnoughKeys
	}
	for i, s := range specs {
		a := ic.Accounts()[i]
		if s.signer && !a.IsSigner {
			return ErrAccountNotSigner
		}
		if s.writable && !a.IsWritable {
			return ErrAccountNotMutable
		}
		if s.program != nil && a.PublicKey != *s.program {
			if *s.program == solana.RentSysvarID {
				return ErrAccountSysvarMismatch
			}
			return ErrInvalidProgramID
		}
	}
	return nil
}

func exists(acct *domain.Account) bool {
	return acct != nil && (acct.Lamports > 0 || len(acct.Data) > 0)
}

// loadMint returns the initialized mint at addr or ErrAccountNotFound.
func loadMint(ic *runtime.InvokeContext, addr solana.PublicKey) (*token.Mint, error) {
	acct, err := ic.Load(addr)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Owner != solana.TokenProgramID {
		return nil, ErrAccountNotFound
	}
	mint, err := token.UnpackMint(acct.Data)
	if err != nil || !mint.IsInitialized {
		return nil, ErrAccountNotFound
	}
	return mint, nil
}

// loadHolder returns the initialized token account at addr or ErrAccountNotFound.
func loadHolder(ic *runtime.InvokeContext, addr solana.PublicKey) (*token.Account, error) {
	acct, err := ic.Load(addr)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Owner != solana.TokenProgramID {
		return nil, ErrAccountNotFound
	}
	holder, err := token.UnpackAccount(acct.Data)
	if err != nil || holder.State == token.AccountUninitialized {
		return nil, ErrAccountNotFound
	}
	return holder, nil
}

func (p *Program) initializeNft(ic *runtime.InvokeContext, _ MetadataArgs) error {
	if err := validate(ic,
		mutSigner, mutSigner,
		programAccount(solana.TokenProgramID),
		programAccount(solana.RentSysvarID),
		programAccount(solana.SystemProgramID),
	); err != nil {
		return err
	}
	owner, minter := ic.Accounts()[0].PublicKey, ic.Accounts()[1].PublicKey

	acct, err := ic.Load(minter)
	if err != nil {
		return err
	}
	if exists(acct) {
		return ErrAlreadyInitialized
	}

	if err := p.createMint(ic, owner, minter); err != nil {
		return err
	}

	ic.Emit(domain.NftEvent{
		Kind:      domain.EventMintInitialized,
		Mint:      minter.String(),
		Authority: owner.String(),
	})
	return nil
}

func (p *Program) createMint(ic *runtime.InvokeContext, owner, minter solana.PublicKey) error {
	if err := ic.Invoke(system.CreateAccount(owner, minter, MintLamports, token.MintSize, solana.TokenProgramID)); err != nil {
		return err
	}
	ic.Log("Mint account created")

	if err := ic.Invoke(token.InitializeMint(minter, 0, owner, &owner)); err != nil {
		return err
	}
	ic.Log("Minter initialized")
	return nil
}

func (p *Program) createNftHolder(ic *runtime.InvokeContext, _ MetadataArgs) error {
	if err := validate(ic,
		mutSigner, mut, mut,
		programAccount(solana.TokenProgramID),
		programAccount(solana.AssociatedTokenProgramID),
		programAccount(solana.RentSysvarID),
		programAccount(solana.SystemProgramID),
	); err != nil {
		return err
	}
	accts := ic.Accounts()
	user, minter, holder := accts[0].PublicKey, accts[1].PublicKey, accts[2].PublicKey

	if err := checkHolderAddress(ic, user, minter, holder); err != nil {
		return err
	}
	if _, err := loadMint(ic, minter); err != nil {
		return err
	}
	acct, err := ic.Load(holder)
	if err != nil {
		return err
	}
	if exists(acct) {
		return ErrAlreadyExists
	}

	if err := p.createHolder(ic, user, minter); err != nil {
		return err
	}

	ic.Emit(domain.NftEvent{
		Kind:      domain.EventHolderCreated,
		Mint:      minter.String(),
		Authority: user.String(),
		To:        holder.String(),
	})
	return nil
}

func checkHolderAddress(ic *runtime.InvokeContext, user, minter, holder solana.PublicKey) error {
	want, err := associated.Address(user, minter)
	if err != nil || want != holder {
		ic.Log("Holder %s is not the associated token account of %s", holder, user)
		return runtime.ErrInvalidSeeds
	}
	return nil
}

func (p *Program) createHolder(ic *runtime.InvokeContext, user, minter solana.PublicKey) error {
	ix, err := associated.Create(user, user, minter)
	if err != nil {
		return runtime.ErrInvalidSeeds
	}
	if err := ic.Invoke(ix); err != nil {
		return err
	}
	ic.Log("Associated token account created")
	return nil
}

func (p *Program) mintNft(ic *runtime.InvokeContext, args MetadataArgs) error {
	if err := validate(ic,
		mutSigner, mut, mut, mut, mut,
		programAccount(solana.TokenProgramID),
		programAccount(solana.RentSysvarID),
		programAccount(solana.SystemProgramID),
		programAccount(solana.MetadataProgramID),
	); err != nil {
		return err
	}
	accts := ic.Accounts()
	authority, minter, holder := accts[0].PublicKey, accts[1].PublicKey, accts[2].PublicKey

	mint, err := loadMint(ic, minter)
	if err != nil {
		return err
	}
	// Supply goes first: after a mint the authority has already moved to
	// the master edition.
	if mint.Supply >= 1 {
		return ErrSupplyExceeded
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != authority {
		return ErrUnauthorized
	}
	holderAcct, err := loadHolder(ic, holder)
	if err != nil {
		return err
	}
	if holderAcct.Mint != minter {
		return ErrMintMismatch
	}

	if err := p.mintAndDescribe(ic, authority, minter, holder, args); err != nil {
		return err
	}

	ic.Emit(domain.NftEvent{
		Kind:      domain.EventMinted,
		Mint:      minter.String(),
		Authority: authority.String(),
		To:        holder.String(),
		Name:      args.Name,
		Symbol:    args.Symbol,
		URI:       args.URI,
	})
	return nil
}

// mintAndDescribe mints one unit into holder, then creates the metadata and
// the master edition, which takes over the mint authority.
func (p *Program) mintAndDescribe(ic *runtime.InvokeContext, authority, minter, holder solana.PublicKey, args MetadataArgs) error {
	if err := ic.Invoke(token.MintTo(minter, holder, authority, 1)); err != nil {
		return err
	}
	ic.Log("Token minted")

	creators := []metadata.Creator{
		{Address: minter, Verified: false, Share: 100},
		{Address: authority, Verified: false, Share: 0},
	}
	createMetadata, err := metadata.CreateMetadataAccountV3(metadata.CreateMetadataAccountV3Accounts{
		Mint:                    minter,
		MintAuthority:           authority,
		Payer:                   authority,
		UpdateAuthority:         authority,
		UpdateAuthorityIsSigner: true,
	}, metadata.DataV2{
		Name:                 args.Name,
		Symbol:               args.Symbol,
		URI:                  args.URI,
		SellerFeeBasisPoints: SellerFeeBasisPoints,
		Creators:             &creators,
	}, true)
	if err != nil {
		return runtime.ErrInvalidSeeds
	}
	if err := ic.Invoke(createMetadata); err != nil {
		return err
	}
	ic.Log("Metadata created")

	maxSupply := uint64(1)
	createEdition, err := metadata.CreateMasterEditionV3(metadata.CreateMasterEditionV3Accounts{
		Mint:            minter,
		UpdateAuthority: authority,
		MintAuthority:   authority,
		Payer:           authority,
	}, &maxSupply)
	if err != nil {
		return runtime.ErrInvalidSeeds
	}
	if err := ic.Invoke(createEdition); err != nil {
		return err
	}
	ic.Log("Master edition created")
	return nil
}

func (p *Program) transferNft(ic *runtime.InvokeContext, _ MetadataArgs) error {
	if err := validate(ic,
		mutSigner, mut, mut, mut,
		programAccount(solana.TokenProgramID),
	); err != nil {
		return err
	}
	accts := ic.Accounts()
	authority, minter := accts[0].PublicKey, accts[1].PublicKey
	senderAddr, recipientAddr := accts[2].PublicKey, accts[3].PublicKey

	if _, err := loadMint(ic, minter); err != nil {
		return err
	}
	sender, err := loadHolder(ic, senderAddr)
	if err != nil {
		return err
	}
	recipient, err := loadHolder(ic, recipientAddr)
	if err != nil {
		return err
	}
	if sender.Mint != minter || recipient.Mint != minter {
		return ErrMintMismatch
	}
	if sender.Amount == 0 {
		return ErrInsufficientBalance
	}
	if sender.Owner != authority {
		return ErrUnauthorized
	}
	if recipient.Amount != 0 {
		return ErrDestinationOccupied
	}

	if err := ic.Invoke(token.Transfer(senderAddr, recipientAddr, authority, 1)); err != nil {
		return err
	}
	ic.Log("Token transferred")

	ic.Emit(domain.NftEvent{
		Kind:      domain.EventTransferred,
		Mint:      minter.String(),
		Authority: authority.String(),
		From:      senderAddr.String(),
		To:        recipientAddr.String(),
	})
	return nil
}

func (p *Program) createNft(ic *runtime.InvokeContext, args MetadataArgs) error {
	if err := validate(ic,
		mutSigner, mutSigner, mut, mut, mut,
		programAccount(solana.TokenProgramID),
		programAccount(solana.AssociatedTokenProgramID),
		programAccount(solana.RentSysvarID),
		programAccount(solana.SystemProgramID),
		programAccount(solana.MetadataProgramID),
	); err != nil {
		return err
	}
	accts := ic.Accounts()
	authority, minter, holder := accts[0].PublicKey, accts[1].PublicKey, accts[2].PublicKey

	acct, err := ic.Load(minter)
	if err != nil {
		return err
	}
	if exists(acct) {
		// A minter that already carries its unit reports the supply limit.
		if mint, err := loadMint(ic, minter); err == nil && mint.Supply >= 1 {
			return ErrSupplyExceeded
		}
		return ErrAlreadyInitialized
	}
	if err := checkHolderAddress(ic, authority, minter, holder); err != nil {
		return err
	}

	if err := p.createMint(ic, authority, minter); err != nil {
		return err
	}
	if err := p.createHolder(ic, authority, minter); err != nil {
		return err
	}
	if err := p.mintAndDescribe(ic, authority, minter, holder, args); err != nil {
		return err
	}
	ic.Log("NFT created")

	for _, e := range []domain.NftEvent{
		{Kind: domain.EventMintInitialized, Authority: authority.String()},
		{Kind: domain.EventHolderCreated, Authority: authority.String(), To: holder.String()},
		{Kind: domain.EventMinted, Authority: authority.String(), To: holder.String(), Name: args.Name, Symbol: args.Symbol, URI: args.URI},
	} {
		e.Mint = minter.String()
		ic.Emit(e)
	}
	return nil
}

func (p *Program) updateNftMetadata(ic *runtime.InvokeContext, args MetadataArgs) error {
	if err := validate(ic,
		mutSigner, mut,
		programAccount(solana.MetadataProgramID),
	); err != nil {
		return err
	}
	authority, metadataAddr := ic.Accounts()[0].PublicKey, ic.Accounts()[1].PublicKey

	acct, err := ic.Load(metadataAddr)
	if err != nil {
		return err
	}
	if acct == nil || acct.Owner != solana.MetadataProgramID {
		return ErrAccountNotFound
	}
	md, err := metadata.UnpackMetadata(acct.Data)
	if err != nil {
		return ErrAccountNotFound
	}
	if md.UpdateAuthority != authority {
		return ErrUnauthorized
	}

	ix, err := metadata.UpdateMetadataAccountV2(metadataAddr, authority, metadata.UpdateMetadataAccountV2Args{
		Data: &metadata.DataV2{
			Name:                 args.Name,
			Symbol:               args.Symbol,
			URI:                  args.URI,
			SellerFeeBasisPoints: SellerFeeBasisPoints,
		},
	})
	if err != nil {
		return ErrInstructionDidNotDeserialize
	}
	if err := ic.Invoke(ix); err != nil {
		return err
	}
	ic.Log("Metadata updated")

	ic.Emit(domain.NftEvent{
		Kind:      domain.EventMetadataUpdated,
		Mint:      md.Mint.String(),
		Authority: authority.String(),
		Name:      args.Name,
		Symbol:    args.Symbol,
		URI:       args.URI,
	})
	return nil
}
