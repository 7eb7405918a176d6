package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"solana-nft-lab/internal/programs/associated"
	"solana-nft-lab/internal/programs/metadata"
	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/programs/token"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/runtime/runtimetest"
	"solana-nft-lab/internal/solana"
)

type fixture struct {
	env    *runtimetest.Env
	mint   solana.PublicKey
	holder solana.PublicKey
}

// newFixture creates a decimals-0 mint whose authority is the payer, with an
// associated token account for the payer.
func newFixture(t *testing.T) *fixture {
	env := runtimetest.New(t, system.New(), token.New(), associated.New(), metadata.New())
	mint := env.NewKeypair()
	payer := env.Payer.PublicKey

	createHolder, err := associated.Create(payer, payer, mint.PublicKey)
	require.NoError(t, err)

	env.MustSend([]solana.Instruction{
		system.CreateAccount(payer, mint.PublicKey, runtime.RentExemptMinimum(token.MintSize), token.MintSize, solana.TokenProgramID),
		token.InitializeMint(mint.PublicKey, 0, payer, &payer),
		createHolder,
	}, mint)

	return &fixture{env: env, mint: mint.PublicKey, holder: createHolder.Accounts[1].PublicKey}
}

func (f *fixture) mintOne(t *testing.T) {
	f.env.MustSend([]solana.Instruction{token.MintTo(f.mint, f.holder, f.env.Payer.PublicKey, 1)})
}

func (f *fixture) data(name string) metadata.DataV2 {
	return metadata.DataV2{
		Name:                 name,
		Symbol:               "LAB",
		URI:                  "https://example.com/nft.json",
		SellerFeeBasisPoints: 1,
		Creators: &[]metadata.Creator{
			{Address: f.mint, Share: 100},
			{Address: f.env.Payer.PublicKey, Share: 0},
		},
	}
}

func (f *fixture) createMetadataIx(t *testing.T, data metadata.DataV2, mutable bool) solana.Instruction {
	payer := f.env.Payer.PublicKey
	ix, err := metadata.CreateMetadataAccountV3(metadata.CreateMetadataAccountV3Accounts{
		Mint:                    f.mint,
		MintAuthority:           payer,
		Payer:                   payer,
		UpdateAuthority:         payer,
		UpdateAuthorityIsSigner: true,
	}, data, mutable)
	require.NoError(t, err)
	return ix
}

func (f *fixture) metadataAddr(t *testing.T) solana.PublicKey {
	addr, _, err := solana.FindMetadataAddress(f.mint)
	require.NoError(t, err)
	return addr
}

func (f *fixture) readMetadata(t *testing.T) *metadata.Metadata {
	acct := f.env.Account(f.metadataAddr(t))
	require.NotNil(t, acct)
	md, err := metadata.UnpackMetadata(acct.Data)
	require.NoError(t, err)
	return md
}

func TestMetadataLayout(t *testing.T) {
	nonce := uint8(254)
	standard := metadata.NonFungible
	md := &metadata.Metadata{
		Key:                  metadata.KeyMetadataV1,
		UpdateAuthority:      solana.PublicKey{1},
		Mint:                 solana.PublicKey{2},
		Name:                 "Lab #1",
		Symbol:               "LAB",
		URI:                  "https://example.com/1.json",
		SellerFeeBasisPoints: 1,
		Creators:             []metadata.Creator{{Address: [32]uint8{2}, Share: 100}},
		IsMutable:            true,
		EditionNonce:         &nonce,
		TokenStandard:        &standard,
	}

	data := md.Pack()
	require.Len(t, data, metadata.MaxMetadataLen)
	require.Equal(t, byte(metadata.KeyMetadataV1), data[0])
	// Name is padded to its maximum length.
	require.Equal(t, []byte{32, 0, 0, 0}, data[65:69])

	got, err := metadata.UnpackMetadata(data)
	require.NoError(t, err)
	require.Equal(t, md, got)

	_, err = metadata.UnpackMetadata(make([]byte, metadata.MaxMetadataLen))
	require.ErrorIs(t, err, metadata.ErrInvalidLayout)
	_, err = metadata.UnpackMetadata(data[:100])
	require.ErrorIs(t, err, metadata.ErrInvalidLayout)
}

func TestMasterEditionLayout(t *testing.T) {
	max := uint64(1)
	e := &metadata.MasterEdition{Key: metadata.KeyMasterEditionV2, MaxSupply: &max}
	data := e.Pack()
	require.Len(t, data, metadata.MaxMasterEditionLen)

	got, err := metadata.UnpackMasterEdition(data)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestCreateMetadataAccount(t *testing.T) {
	f := newFixture(t)
	f.env.MustSend([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #1"), true)})

	md := f.readMetadata(t)
	require.Equal(t, "Lab #1", md.Name)
	require.Equal(t, "LAB", md.Symbol)
	require.Equal(t, "https://example.com/nft.json", md.URI)
	require.Equal(t, uint16(1), md.SellerFeeBasisPoints)
	require.Equal(t, f.env.Payer.PublicKey, md.UpdateAuthority)
	require.Equal(t, f.mint, md.Mint)
	require.True(t, md.IsMutable)
	require.False(t, md.PrimarySaleHappened)
	require.Len(t, md.Creators, 2)
	require.Equal(t, uint8(100), md.Creators[0].Share)
	require.False(t, md.Creators[0].Verified)
	require.Equal(t, metadata.FungibleAsset, *md.TokenStandard)
	require.Nil(t, md.Collection)
	require.Nil(t, md.Uses)

	_, bump, err := solana.FindMasterEditionAddress(f.mint)
	require.NoError(t, err)
	require.Equal(t, bump, *md.EditionNonce)

	acct := f.env.Account(f.metadataAddr(t))
	require.Equal(t, solana.MetadataProgramID, acct.Owner)
	require.Equal(t, runtime.RentExemptMinimum(metadata.MaxMetadataLen), acct.Lamports)
}

func TestCreateMetadataAccount_Invalid(t *testing.T) {
	f := newFixture(t)
	other := f.env.NewKeypair()

	long := f.data("a name that is well over thirty-two bytes")
	badShares := f.data("Lab")
	(*badShares.Creators)[1].Share = 1
	verified := f.data("Lab")
	(*verified.Creators)[0].Verified = true
	highFee := f.data("Lab")
	highFee.SellerFeeBasisPoints = 10001

	wrongAuthority, err := metadata.CreateMetadataAccountV3(metadata.CreateMetadataAccountV3Accounts{
		Mint:            f.mint,
		MintAuthority:   other.PublicKey,
		Payer:           f.env.Payer.PublicKey,
		UpdateAuthority: other.PublicKey,
	}, f.data("Lab"), true)
	require.NoError(t, err)

	tests := []struct {
		name    string
		ix      solana.Instruction
		signers []*solana.Keypair
		code    uint32
	}{
		{name: "name too long", ix: f.createMetadataIx(t, long, true), code: 11},
		{name: "shares", ix: f.createMetadataIx(t, badShares, true), code: 45},
		{name: "verify another creator", ix: f.createMetadataIx(t, verified, true), code: 53},
		{name: "basis points", ix: f.createMetadataIx(t, highFee, true), code: 41},
		{name: "mint authority", ix: wrongAuthority, signers: []*solana.Keypair{other}, code: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.env.Send([]solana.Instruction{tt.ix}, tt.signers...)
			runtimetest.RequireCustomError(t, res, 0, tt.code)
			require.Nil(t, f.env.Account(f.metadataAddr(t)))
		})
	}
}

func TestCreateMetadataAccount_Twice(t *testing.T) {
	f := newFixture(t)
	f.env.MustSend([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #1"), true)})

	res := f.env.Send([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #2"), true)})
	runtimetest.RequireCustomError(t, res, 0, 3)
	require.Equal(t, "Lab #1", f.readMetadata(t).Name)
}

func (f *fixture) masterEditionIx(t *testing.T) solana.Instruction {
	payer := f.env.Payer.PublicKey
	max := uint64(1)
	ix, err := metadata.CreateMasterEditionV3(metadata.CreateMasterEditionV3Accounts{
		Mint:            f.mint,
		UpdateAuthority: payer,
		MintAuthority:   payer,
		Payer:           payer,
	}, &max)
	require.NoError(t, err)
	return ix
}

func TestCreateMasterEdition(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t)
	f.env.MustSend([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #1"), true), f.masterEditionIx(t)})

	editionAddr, _, err := solana.FindMasterEditionAddress(f.mint)
	require.NoError(t, err)
	acct := f.env.Account(editionAddr)
	require.NotNil(t, acct)
	require.Equal(t, solana.MetadataProgramID, acct.Owner)

	edition, err := metadata.UnpackMasterEdition(acct.Data)
	require.NoError(t, err)
	require.Zero(t, edition.Supply)
	require.Equal(t, uint64(1), *edition.MaxSupply)

	mint, err := token.UnpackMint(f.env.Account(f.mint).Data)
	require.NoError(t, err)
	require.Equal(t, editionAddr, *mint.MintAuthority)
	require.Equal(t, editionAddr, *mint.FreezeAuthority)
	require.Equal(t, uint64(1), mint.Supply)

	require.Equal(t, metadata.NonFungible, *f.readMetadata(t).TokenStandard)

	// The payer no longer controls the mint.
	res := f.env.Send([]solana.Instruction{token.MintTo(f.mint, f.holder, f.env.Payer.PublicKey, 1)})
	runtimetest.RequireCustomError(t, res, 0, 4)
}

func TestCreateMasterEdition_RequiresOneToken(t *testing.T) {
	f := newFixture(t)
	f.env.MustSend([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #1"), true)})

	res := f.env.Send([]solana.Instruction{f.masterEditionIx(t)})
	runtimetest.RequireCustomError(t, res, 0, 16)

	editionAddr, _, err := solana.FindMasterEditionAddress(f.mint)
	require.NoError(t, err)
	require.Nil(t, f.env.Account(editionAddr))
}

func TestUpdateMetadataAccount(t *testing.T) {
	f := newFixture(t)
	f.env.MustSend([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #1"), true)})

	data := metadata.DataV2{Name: "Lab #1b", Symbol: "LAB2", URI: "https://example.com/b.json", SellerFeeBasisPoints: 1}
	ix, err := metadata.UpdateMetadataAccountV2(f.metadataAddr(t), f.env.Payer.PublicKey,
		metadata.UpdateMetadataAccountV2Args{Data: &data})
	require.NoError(t, err)
	f.env.MustSend([]solana.Instruction{ix})

	md := f.readMetadata(t)
	require.Equal(t, "Lab #1b", md.Name)
	require.Equal(t, "LAB2", md.Symbol)
	require.Equal(t, "https://example.com/b.json", md.URI)
	require.Nil(t, md.Creators)
}

func TestUpdateMetadataAccount_DataKeepsFlags(t *testing.T) {
	f := newFixture(t)
	f.env.MustSend([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #1"), true)})

	data := f.data("Lab #2")
	ix, err := metadata.UpdateMetadataAccountV2(f.metadataAddr(t), f.env.Payer.PublicKey,
		metadata.UpdateMetadataAccountV2Args{Data: &data})
	require.NoError(t, err)
	f.env.MustSend([]solana.Instruction{ix})

	md := f.readMetadata(t)
	require.Equal(t, "Lab #2", md.Name)
	require.Len(t, md.Creators, 2)
	require.Equal(t, f.env.Payer.PublicKey, md.UpdateAuthority)
	require.True(t, md.IsMutable)
	require.False(t, md.PrimarySaleHappened)
	require.Nil(t, md.Collection)
	require.Nil(t, md.Uses)
}

func TestUpdateMetadataAccount_WrongAuthority(t *testing.T) {
	f := newFixture(t)
	f.env.MustSend([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #1"), true)})
	intruder := f.env.NewKeypair()

	data := metadata.DataV2{Name: "stolen"}
	ix, err := metadata.UpdateMetadataAccountV2(f.metadataAddr(t), intruder.PublicKey,
		metadata.UpdateMetadataAccountV2Args{Data: &data})
	require.NoError(t, err)

	res := f.env.Send([]solana.Instruction{ix}, intruder)
	runtimetest.RequireCustomError(t, res, 0, 7)
	require.Equal(t, "Lab #1", f.readMetadata(t).Name)
}

func TestUpdateMetadataAccount_Flags(t *testing.T) {
	f := newFixture(t)
	f.env.MustSend([]solana.Instruction{f.createMetadataIx(t, f.data("Lab #1"), false)})
	addr := f.metadataAddr(t)
	payer := f.env.Payer.PublicKey

	data := metadata.DataV2{Name: "changed"}
	ix, err := metadata.UpdateMetadataAccountV2(addr, payer, metadata.UpdateMetadataAccountV2Args{Data: &data})
	require.NoError(t, err)
	runtimetest.RequireCustomError(t, f.env.Send([]solana.Instruction{ix}), 0, 54)

	yes := true
	ix, err = metadata.UpdateMetadataAccountV2(addr, payer, metadata.UpdateMetadataAccountV2Args{IsMutable: &yes})
	require.NoError(t, err)
	runtimetest.RequireCustomError(t, f.env.Send([]solana.Instruction{ix}), 0, 52)

	next := f.env.NewKeypair().PublicKey
	ix, err = metadata.UpdateMetadataAccountV2(addr, payer, metadata.UpdateMetadataAccountV2Args{
		PrimarySaleHappened: &yes,
		UpdateAuthority:     &next,
	})
	require.NoError(t, err)
	f.env.MustSend([]solana.Instruction{ix})

	md := f.readMetadata(t)
	require.True(t, md.PrimarySaleHappened)
	require.Equal(t, next, md.UpdateAuthority)
}
