package core

// loadAccount returns the account record for addr, creating a zero-balance
// one lazily if it does not exist yet (spec §3: "Accounts are created
// lazily on first deposit").
func loadAccount(b *WriteBatch, addr AccountAddress) Account {
	if a, ok := b.t.Accounts[addr]; ok {
		return a
	}
	return zeroAccount()
}

func balanceOf(a Account, token TokenKind) *HpFixed {
	if token == TokenUSDC {
		return a.StablesBalance
	}
	return a.FlkBalance
}

func setBalance(a *Account, token TokenKind, v *HpFixed) {
	if token == TokenUSDC {
		a.StablesBalance = v
	} else {
		a.FlkBalance = v
	}
}

// handleDeposit credits addr after an external consensus proof of deposit
// (spec §4.3 "Deposit"). The proof bytes themselves are validated by the
// external bridge/consensus layer before this transaction is ever
// assembled; the executor's job is only the deterministic credit.
func (ex *Executor) handleDeposit(b *WriteBatch, addr AccountAddress, m DepositMethod) (ExecutionData, *ExecutionError) {
	acct := loadAccount(b, addr)
	bal := balanceOf(acct, m.Token)
	newBal, err := bal.Add(m.Amount)
	if err != nil {
		return nil, revert(RevertInsufficientBalance, "%v", err)
	}
	setBalance(&acct, m.Token, newBal)
	b.t.Accounts[addr] = acct
	if m.Token == TokenFLK {
		supply, err := b.t.Metadata.Supply.Add(m.Amount)
		if err != nil {
			return nil, revert(RevertInsufficientBalance, "%v", err)
		}
		b.t.Metadata.Supply = supply
	}
	return ExecutionData{"balance": newBal.String()}, nil
}

// handleWithdraw debits addr and emits a withdrawal intent (spec §4.3
// "Withdraw"). The intent is represented here only as the receipt data an
// external bridge consumes; it is not itself persisted state.
func (ex *Executor) handleWithdraw(b *WriteBatch, addr AccountAddress, m WithdrawMethod) (ExecutionData, *ExecutionError) {
	acct := loadAccount(b, addr)
	bal := balanceOf(acct, m.Token)
	newBal, err := bal.Sub(m.Amount)
	if err != nil {
		return nil, revert(RevertInsufficientBalance, "%v", err)
	}
	if newBal.Sign() < 0 {
		return nil, revert(RevertInsufficientBalance, "balance %s < %s", bal, m.Amount)
	}
	setBalance(&acct, m.Token, newBal)
	b.t.Accounts[addr] = acct
	if m.Token == TokenFLK {
		supply, err := b.t.Metadata.Supply.Sub(m.Amount)
		if err != nil || supply.Sign() < 0 {
			return nil, revert(RevertInsufficientBalance, "supply underflow")
		}
		b.t.Metadata.Supply = supply
	}
	return ExecutionData{"withdrawal_intent": m.Amount.String()}, nil
}

// handleTransfer moves tokens between two accounts, rejecting self-transfers
// (spec §4.3 "Transfer", spec §8 "self-transfer rejection").
func (ex *Executor) handleTransfer(b *WriteBatch, from AccountAddress, m TransferMethod) (ExecutionData, *ExecutionError) {
	if from == m.To {
		return nil, revert(RevertCantSendToYourself, "")
	}
	sender := loadAccount(b, from)
	senderBal := balanceOf(sender, m.Token)
	newSenderBal, err := senderBal.Sub(m.Amount)
	if err != nil || newSenderBal.Sign() < 0 {
		return nil, revert(RevertInsufficientBalance, "balance %s < %s", senderBal, m.Amount)
	}
	recipient := loadAccount(b, m.To)
	newRecipientBal, err := balanceOf(recipient, m.Token).Add(m.Amount)
	if err != nil {
		return nil, revert(RevertInsufficientBalance, "%v", err)
	}
	setBalance(&sender, m.Token, newSenderBal)
	setBalance(&recipient, m.Token, newRecipientBal)
	b.t.Accounts[from] = sender
	b.t.Accounts[m.To] = recipient
	return ExecutionData{"to": m.To, "amount": m.Amount.String()}, nil
}
