package token

import (
	"github.com/near/borsh-go"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// Program is the token program.
type Program struct{}

// New returns the token program.
func New() *Program { return &Program{} }

var _ runtime.Program = (*Program)(nil)

func (p *Program) ID() solana.PublicKey { return solana.TokenProgramID }
func (p *Program) Name() string         { return "token" }

// Process dispatches on the first data byte.
func (p *Program) Process(ic *runtime.InvokeContext, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}

	switch data[0] {
	case InstructionInitializeMint:
		decimals, mintAuthority, freezeAuthority, err := decodeInitializeMint(data)
		if err != nil {
			return err
		}
		ic.Log("Instruction: InitializeMint")
		return p.initializeMint(ic, decimals, mintAuthority, freezeAuthority)
	case InstructionInitializeAccount:
		ic.Log("Instruction: InitializeAccount")
		return p.initializeAccount(ic)
	case InstructionTransfer:
		var args amountArgs
		if err := borsh.Deserialize(&args, data); err != nil {
			return ErrInvalidInstruction
		}
		ic.Log("Instruction: Transfer")
		return p.transfer(ic, args.Amount)
	case InstructionSetAuthority:
		authorityType, newAuthority, err := decodeSetAuthority(data)
		if err != nil {
			return err
		}
		ic.Log("Instruction: SetAuthority")
		return p.setAuthority(ic, authorityType, newAuthority)
	case InstructionMintTo:
		var args amountArgs
		if err := borsh.Deserialize(&args, data); err != nil {
			return ErrInvalidInstruction
		}
		ic.Log("Instruction: MintTo")
		return p.mintTo(ic, args.Amount)
	default:
		return ErrInvalidInstruction
	}
}

func (p *Program) initializeMint(ic *runtime.InvokeContext, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) error {
	if err := ic.RequireAccounts(2); err != nil {
		return err
	}
	addr := ic.Accounts()[0].PublicKey
	if ic.Accounts()[1].PublicKey != solana.RentSysvarID {
		return runtime.ErrInvalidArgument
	}

	acct, err := p.loadOwned(ic, addr, MintSize)
	if err != nil {
		return err
	}
	mint, err := UnpackMint(acct.Data)
	if err != nil {
		return runtime.ErrInvalidAccountData
	}
	if mint.IsInitialized {
		return ErrAlreadyInUse
	}
	if acct.Lamports < runtime.RentExemptMinimum(MintSize) {
		return ErrNotRentExempt
	}

	mint.MintAuthority = &mintAuthority
	mint.Decimals = decimals
	mint.IsInitialized = true
	mint.FreezeAuthority = freezeAuthority

	acct.Data = mint.Pack()
	return ic.Store(addr, acct)
}

func (p *Program) initializeAccount(ic *runtime.InvokeContext) error {
	if err := ic.RequireAccounts(4); err != nil {
		return err
	}
	accts := ic.Accounts()
	addr, mintAddr, owner := accts[0].PublicKey, accts[1].PublicKey, accts[2].PublicKey
	if accts[3].PublicKey != solana.RentSysvarID {
		return runtime.ErrInvalidArgument
	}

	acct, err := p.loadOwned(ic, addr, AccountSize)
	if err != nil {
		return err
	}
	tokenAcct, err := UnpackAccount(acct.Data)
	if err != nil {
		return runtime.ErrInvalidAccountData
	}
	if tokenAcct.State != AccountUninitialized {
		return ErrAlreadyInUse
	}
	if acct.Lamports < runtime.RentExemptMinimum(AccountSize) {
		return ErrNotRentExempt
	}
	if _, _, err := p.loadMint(ic, mintAddr); err != nil {
		return ErrInvalidMint
	}

	tokenAcct.Mint = mintAddr
	tokenAcct.Owner = owner
	tokenAcct.State = AccountInitialized

	acct.Data = tokenAcct.Pack()
	return ic.Store(addr, acct)
}

func (p *Program) transfer(ic *runtime.InvokeContext, amount uint64) error {
	if err := ic.RequireAccounts(3); err != nil {
		return err
	}
	accts := ic.Accounts()
	srcAddr, dstAddr, authority := accts[0].PublicKey, accts[1].PublicKey, accts[2].PublicKey

	srcRaw, src, err := p.loadTokenAccount(ic, srcAddr)
	if err != nil {
		return err
	}
	dstRaw, dst, err := p.loadTokenAccount(ic, dstAddr)
	if err != nil {
		return err
	}

	if src.State == AccountFrozen || dst.State == AccountFrozen {
		return ErrAccountFrozen
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if err := p.validateOwner(ic, src.Owner, authority); err != nil {
		return err
	}

	if srcAddr == dstAddr {
		return nil
	}

	src.Amount -= amount
	dst.Amount += amount

	srcRaw.Data = src.Pack()
	if err := ic.Store(srcAddr, srcRaw); err != nil {
		return err
	}
	dstRaw.Data = dst.Pack()
	return ic.Store(dstAddr, dstRaw)
}

func (p *Program) mintTo(ic *runtime.InvokeContext, amount uint64) error {
	if err := ic.RequireAccounts(3); err != nil {
		return err
	}
	accts := ic.Accounts()
	mintAddr, dstAddr, authority := accts[0].PublicKey, accts[1].PublicKey, accts[2].PublicKey

	dstRaw, dst, err := p.loadTokenAccount(ic, dstAddr)
	if err != nil {
		return err
	}
	if dst.State == AccountFrozen {
		return ErrAccountFrozen
	}
	if dst.Mint != mintAddr {
		return ErrMintMismatch
	}

	mintRaw, mint, err := p.loadMint(ic, mintAddr)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil {
		return ErrFixedSupply
	}
	if err := p.validateOwner(ic, *mint.MintAuthority, authority); err != nil {
		return err
	}

	if dst.Amount+amount < dst.Amount || mint.Supply+amount < mint.Supply {
		return ErrOverflow
	}
	dst.Amount += amount
	mint.Supply += amount

	dstRaw.Data = dst.Pack()
	if err := ic.Store(dstAddr, dstRaw); err != nil {
		return err
	}
	mintRaw.Data = mint.Pack()
	return ic.Store(mintAddr, mintRaw)
}

func (p *Program) setAuthority(ic *runtime.InvokeContext, kind AuthorityType, newAuthority *solana.PublicKey) error {
	if err := ic.RequireAccounts(2); err != nil {
		return err
	}
	addr, current := ic.Accounts()[0].PublicKey, ic.Accounts()[1].PublicKey

	acct, err := ic.Load(addr)
	if err != nil {
		return err
	}
	if acct == nil || acct.Owner != solana.TokenProgramID {
		return runtime.ErrIncorrectProgramID
	}

	switch len(acct.Data) {
	case MintSize:
		mint, err := UnpackMint(acct.Data)
		if err != nil || !mint.IsInitialized {
			return ErrUninitializedState
		}
		switch kind {
		case AuthorityMintTokens:
			if mint.MintAuthority == nil {
				return ErrFixedSupply
			}
			if err := p.validateOwner(ic, *mint.MintAuthority, current); err != nil {
				return err
			}
			mint.MintAuthority = newAuthority
		case AuthorityFreezeAccount:
			if mint.FreezeAuthority == nil {
				return ErrMintCannotFreeze
			}
			if err := p.validateOwner(ic, *mint.FreezeAuthority, current); err != nil {
				return err
			}
			mint.FreezeAuthority = newAuthority
		default:
			return ErrAuthorityTypeNotSupported
		}
		acct.Data = mint.Pack()

	case AccountSize:
		tokenAcct, err := UnpackAccount(acct.Data)
		if err != nil || tokenAcct.State == AccountUninitialized {
			return ErrUninitializedState
		}
		if tokenAcct.State == AccountFrozen {
			return ErrAccountFrozen
		}
		switch kind {
		case AuthorityAccountOwner:
			if err := p.validateOwner(ic, tokenAcct.Owner, current); err != nil {
				return err
			}
			if newAuthority == nil {
				return ErrInvalidInstruction
			}
			tokenAcct.Owner = *newAuthority
			tokenAcct.Delegate = nil
			tokenAcct.DelegatedAmount = 0
		case AuthorityCloseAccount:
			closer := tokenAcct.Owner
			if tokenAcct.CloseAuthority != nil {
				closer = *tokenAcct.CloseAuthority
			}
			if err := p.validateOwner(ic, closer, current); err != nil {
				return err
			}
			tokenAcct.CloseAuthority = newAuthority
		default:
			return ErrAuthorityTypeNotSupported
		}
		acct.Data = tokenAcct.Pack()

	default:
		return runtime.ErrInvalidAccountData
	}

	ic.Log("%s authority of %s set", kind, addr)
	return ic.Store(addr, acct)
}

// loadOwned loads an account the token program owns with the given size.
func (p *Program) loadOwned(ic *runtime.InvokeContext, addr solana.PublicKey, size int) (*domain.Account, error) {
	acct, err := ic.Load(addr)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Owner != solana.TokenProgramID {
		return nil, runtime.ErrIncorrectProgramID
	}
	if len(acct.Data) != size {
		return nil, runtime.ErrInvalidAccountData
	}
	return acct, nil
}

func (p *Program) loadMint(ic *runtime.InvokeContext, addr solana.PublicKey) (*domain.Account, *Mint, error) {
	acct, err := p.loadOwned(ic, addr, MintSize)
	if err != nil {
		return nil, nil, err
	}
	mint, err := UnpackMint(acct.Data)
	if err != nil {
		return nil, nil, runtime.ErrInvalidAccountData
	}
	if !mint.IsInitialized {
		return nil, nil, ErrUninitializedState
	}
	return acct, mint, nil
}

func (p *Program) loadTokenAccount(ic *runtime.InvokeContext, addr solana.PublicKey) (*domain.Account, *Account, error) {
	acct, err := p.loadOwned(ic, addr, AccountSize)
	if err != nil {
		return nil, nil, err
	}
	tokenAcct, err := UnpackAccount(acct.Data)
	if err != nil {
		return nil, nil, runtime.ErrInvalidAccountData
	}
	if tokenAcct.State == AccountUninitialized {
		return nil, nil, ErrUninitializedState
	}
	return acct, tokenAcct, nil
}

// validateOwner requires authority to be expected and to have signed.
func (p *Program) validateOwner(ic *runtime.InvokeContext, expected, authority solana.PublicKey) error {
	if expected != authority {
		return ErrOwnerMismatch
	}
	if !ic.IsSigner(authority) {
		return runtime.ErrMissingRequiredSignature
	}
	return nil
}
