package scenario

import (
	"context"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/programs/nft"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// ExampleURI is the metadata uri used by the deploy flow.
const ExampleURI = "https://raw.githubusercontent.com/Coding-and-Crypto/Solana-NFT-Marketplace/master/assets/example.json"

var testArgs = nft.MetadataArgs{Name: "TestNFT", Symbol: "TestNFT", URI: "TestNFT"}

func init() {
	register(Scenario{
		Name:        "initialize",
		Description: "initialize a minter: decimals 0, supply 0, owner holds both authorities",
		Run:         runInitialize,
	})
	register(Scenario{
		Name:        "holder-repeat",
		Description: "a second create_nft_holder for the same owner fails with AlreadyExists",
		Run:         runHolderRepeat,
	})
	register(Scenario{
		Name:        "mint",
		Description: "mint_nft leaves holder balance 1, supply 1, metadata and a master edition",
		Run:         runMint,
	})
	register(Scenario{
		Name:        "second-mint",
		Description: "mint_nft and create_nft against a minted minter fail with SupplyExceeded",
		Run:         runSecondMint,
	})
	register(Scenario{
		Name:        "create-nft",
		Description: "create_nft initializes, creates the holder and mints in one instruction",
		Run:         runCreateNft,
	})
	register(Scenario{
		Name:        "update-metadata",
		Description: "the update authority rewrites metadata twice; the last write wins",
		Run:         runUpdateMetadata,
	})
	register(Scenario{
		Name:        "update-unauthorized",
		Description: "a non-authority update fails with Unauthorized and changes nothing",
		Run:         runUpdateUnauthorized,
	})
	register(Scenario{
		Name:        "transfer-round-trip",
		Description: "A to B then B to A restores the original balances",
		Run:         runTransferRoundTrip,
	})
	register(Scenario{
		Name:        "transfer-empty-sender",
		Description: "transferring from an empty holder fails with InsufficientBalance",
		Run:         runTransferEmptySender,
	})
	register(Scenario{
		Name:        "lifecycle",
		Description: "O mints M, transfers it to X, and a second transfer from O fails",
		Run:         runLifecycle,
	})
	register(Scenario{
		Name:        "deploy",
		Description: "initialize, create holder and mint with the example metadata uri",
		Run:         runDeploy,
	})
}

// expectErr checks that err matches target.
func expectErr(err, target error) error {
	if err == nil {
		return errors.Errorf("expected %s, got success", errName(target))
	}
	if !errors.Is(err, target) {
		return errors.Wrapf(err, "expected %s", errName(target))
	}
	return nil
}

func errName(err error) string {
	var pe *runtime.ProgramError
	if errors.As(err, &pe) && pe.Name != "" {
		return pe.Name
	}
	return err.Error()
}

func expectBalance(ctx context.Context, env *Env, holder solana.PublicKey, want uint64) error {
	got, err := env.Balance(ctx, holder)
	if err != nil {
		return err
	}
	if got != want {
		return errors.Errorf("holder %s: balance %d, want %d", holder, got, want)
	}
	return nil
}

func expectSupply(ctx context.Context, env *Env, mint solana.PublicKey, want uint64) error {
	m, err := env.Mint(ctx, mint)
	if err != nil {
		return err
	}
	if m.Supply != want {
		return errors.Errorf("mint %s: supply %d, want %d", mint, m.Supply, want)
	}
	return nil
}

// minted runs initialize, holder creation and mint for a new wallet.
func minted(ctx context.Context, env *Env, args nft.MetadataArgs) (owner *solana.Keypair, minter *solana.Keypair, holder solana.PublicKey, err error) {
	if owner, err = env.Wallet(ctx); err != nil {
		return
	}
	if minter, err = solana.NewKeypair(); err != nil {
		return
	}
	if err = env.InitializeNft(ctx, owner, minter); err != nil {
		return
	}
	if holder, err = env.CreateHolder(ctx, owner, minter.PublicKey); err != nil {
		return
	}
	err = env.MintNft(ctx, owner, minter.PublicKey, holder, args)
	return
}

func runInitialize(ctx context.Context, env *Env) error {
	owner, err := env.Wallet(ctx)
	if err != nil {
		return err
	}
	minter, err := solana.NewKeypair()
	if err != nil {
		return err
	}
	if err := env.InitializeNft(ctx, owner, minter); err != nil {
		return err
	}

	m, err := env.Mint(ctx, minter.PublicKey)
	if err != nil {
		return err
	}
	switch {
	case !m.IsInitialized:
		return errors.New("mint not initialized")
	case m.Decimals != 0:
		return errors.Errorf("decimals %d, want 0", m.Decimals)
	case m.Supply != 0:
		return errors.Errorf("supply %d, want 0", m.Supply)
	case m.MintAuthority == nil || *m.MintAuthority != owner.PublicKey:
		return errors.New("mint authority is not the owner")
	case m.FreezeAuthority == nil || *m.FreezeAuthority != owner.PublicKey:
		return errors.New("freeze authority is not the owner")
	}

	return expectErr(env.InitializeNft(ctx, owner, minter), nft.ErrAlreadyInitialized)
}

func runHolderRepeat(ctx context.Context, env *Env) error {
	owner, err := env.Wallet(ctx)
	if err != nil {
		return err
	}
	minter, err := solana.NewKeypair()
	if err != nil {
		return err
	}
	if err := env.InitializeNft(ctx, owner, minter); err != nil {
		return err
	}

	holder, err := env.CreateHolder(ctx, owner, minter.PublicKey)
	if err != nil {
		return err
	}
	want, _, err := solana.FindAssociatedTokenAddress(owner.PublicKey, minter.PublicKey)
	if err != nil {
		return err
	}
	if holder != want {
		return errors.Errorf("holder %s, want associated address %s", holder, want)
	}

	_, err = env.CreateHolder(ctx, owner, minter.PublicKey)
	if err := expectErr(err, nft.ErrAlreadyExists); err != nil {
		return err
	}
	return expectBalance(ctx, env, holder, 0)
}

func runMint(ctx context.Context, env *Env) error {
	owner, minter, holder, err := minted(ctx, env, testArgs)
	if err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holder, 1); err != nil {
		return err
	}
	if err := expectSupply(ctx, env, minter.PublicKey, 1); err != nil {
		return err
	}

	md, err := env.Metadata(ctx, minter.PublicKey)
	if err != nil {
		return err
	}
	switch {
	case md.Name != testArgs.Name || md.Symbol != testArgs.Symbol || md.URI != testArgs.URI:
		return errors.Errorf("metadata %q/%q/%q, want %q/%q/%q", md.Name, md.Symbol, md.URI, testArgs.Name, testArgs.Symbol, testArgs.URI)
	case md.UpdateAuthority != owner.PublicKey:
		return errors.New("update authority is not the owner")
	case md.SellerFeeBasisPoints != nft.SellerFeeBasisPoints:
		return errors.Errorf("seller fee %d bps, want %d", md.SellerFeeBasisPoints, nft.SellerFeeBasisPoints)
	case !md.IsMutable:
		return errors.New("metadata is immutable")
	case len(md.Creators) != 2 || md.Creators[0].Share != 100 || md.Creators[1].Share != 0:
		return errors.Errorf("creators %+v, want mint 100%% and authority 0%%", md.Creators)
	}

	ed, err := env.Edition(ctx, minter.PublicKey)
	if err != nil {
		return err
	}
	if ed.MaxSupply == nil || *ed.MaxSupply != 1 || ed.Supply != 0 {
		return errors.Errorf("edition supply %d max %v, want 0 max 1", ed.Supply, ed.MaxSupply)
	}
	return nil
}

func runSecondMint(ctx context.Context, env *Env) error {
	owner, minter, holder, err := minted(ctx, env, testArgs)
	if err != nil {
		return err
	}

	err = env.MintNft(ctx, owner, minter.PublicKey, holder, nft.MetadataArgs{Name: "again"})
	if err := expectErr(err, nft.ErrSupplyExceeded); err != nil {
		return err
	}
	_, err = env.CreateNft(ctx, owner, minter, nft.MetadataArgs{Name: "again"})
	if err := expectErr(err, nft.ErrSupplyExceeded); err != nil {
		return err
	}

	if err := expectSupply(ctx, env, minter.PublicKey, 1); err != nil {
		return err
	}
	return expectBalance(ctx, env, holder, 1)
}

func runCreateNft(ctx context.Context, env *Env) error {
	owner, err := env.Wallet(ctx)
	if err != nil {
		return err
	}
	minter, err := solana.NewKeypair()
	if err != nil {
		return err
	}
	item, err := env.CreateNft(ctx, owner, minter, testArgs)
	if err != nil {
		return err
	}
	if err := expectBalance(ctx, env, item.Holder, 1); err != nil {
		return err
	}
	if err := expectSupply(ctx, env, item.Mint, 1); err != nil {
		return err
	}
	if _, err := env.Metadata(ctx, item.Mint); err != nil {
		return err
	}
	_, err = env.Edition(ctx, item.Mint)
	return err
}

func runUpdateMetadata(ctx context.Context, env *Env) error {
	owner, minter, _, err := minted(ctx, env, testArgs)
	if err != nil {
		return err
	}

	for _, args := range []nft.MetadataArgs{
		{Name: "NewName", Symbol: "NewSymbol", URI: "NewURI"},
		{Name: "NewName2", Symbol: "NewSymbol2", URI: "NewURI2"},
	} {
		if err := env.UpdateMetadata(ctx, owner, minter.PublicKey, args); err != nil {
			return err
		}
		md, err := env.Metadata(ctx, minter.PublicKey)
		if err != nil {
			return err
		}
		if md.Name != args.Name || md.Symbol != args.Symbol || md.URI != args.URI {
			return errors.Errorf("metadata %q/%q/%q after update, want %q/%q/%q", md.Name, md.Symbol, md.URI, args.Name, args.Symbol, args.URI)
		}
		if md.SellerFeeBasisPoints != nft.SellerFeeBasisPoints {
			return errors.Errorf("seller fee %d bps after update", md.SellerFeeBasisPoints)
		}
	}
	return nil
}

func runUpdateUnauthorized(ctx context.Context, env *Env) error {
	_, minter, _, err := minted(ctx, env, testArgs)
	if err != nil {
		return err
	}
	intruder, err := env.Wallet(ctx)
	if err != nil {
		return err
	}

	err = env.UpdateMetadata(ctx, intruder, minter.PublicKey, nft.MetadataArgs{Name: "Stolen", Symbol: "X", URI: "x"})
	if err := expectErr(err, nft.ErrUnauthorized); err != nil {
		return err
	}

	md, err := env.Metadata(ctx, minter.PublicKey)
	if err != nil {
		return err
	}
	if md.Name != testArgs.Name || md.Symbol != testArgs.Symbol || md.URI != testArgs.URI {
		return errors.Errorf("metadata changed to %q/%q/%q", md.Name, md.Symbol, md.URI)
	}
	return nil
}

func runTransferRoundTrip(ctx context.Context, env *Env) error {
	a, minter, holderA, err := minted(ctx, env, testArgs)
	if err != nil {
		return err
	}
	b, err := env.Wallet(ctx)
	if err != nil {
		return err
	}
	holderB, err := env.CreateHolder(ctx, b, minter.PublicKey)
	if err != nil {
		return err
	}

	if err := env.Transfer(ctx, a, minter.PublicKey, holderA, holderB); err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holderA, 0); err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holderB, 1); err != nil {
		return err
	}

	if err := env.Transfer(ctx, b, minter.PublicKey, holderB, holderA); err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holderA, 1); err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holderB, 0); err != nil {
		return err
	}
	return expectSupply(ctx, env, minter.PublicKey, 1)
}

func runTransferEmptySender(ctx context.Context, env *Env) error {
	_, minter, holderA, err := minted(ctx, env, testArgs)
	if err != nil {
		return err
	}
	b, err := env.Wallet(ctx)
	if err != nil {
		return err
	}
	holderB, err := env.CreateHolder(ctx, b, minter.PublicKey)
	if err != nil {
		return err
	}

	err = env.Transfer(ctx, b, minter.PublicKey, holderB, holderA)
	if err := expectErr(err, nft.ErrInsufficientBalance); err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holderA, 1); err != nil {
		return err
	}
	return expectBalance(ctx, env, holderB, 0)
}

func runLifecycle(ctx context.Context, env *Env) error {
	o, m, holderO, err := minted(ctx, env, testArgs)
	if err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holderO, 1); err != nil {
		return err
	}
	if err := expectSupply(ctx, env, m.PublicKey, 1); err != nil {
		return err
	}

	x, err := env.Wallet(ctx)
	if err != nil {
		return err
	}
	holderX, err := env.CreateHolder(ctx, x, m.PublicKey)
	if err != nil {
		return err
	}

	if err := env.Transfer(ctx, o, m.PublicKey, holderO, holderX); err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holderO, 0); err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holderX, 1); err != nil {
		return err
	}

	err = env.Transfer(ctx, o, m.PublicKey, holderO, holderX)
	if err := expectErr(err, nft.ErrInsufficientBalance); err != nil {
		return err
	}
	return expectBalance(ctx, env, holderX, 1)
}

func runDeploy(ctx context.Context, env *Env) error {
	_, minter, holder, err := minted(ctx, env, nft.MetadataArgs{Name: "TestNFT4", Symbol: "TestNFT4", URI: ExampleURI})
	if err != nil {
		return err
	}
	if err := expectBalance(ctx, env, holder, 1); err != nil {
		return err
	}
	return expectSupply(ctx, env, minter.PublicKey, 1)
}
