package rpc

import (
	"context"
	"strings"

	"github.com/Keksclan/rawrguild/ledger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewEconomy serves rawr.Economy from l.
func NewEconomy(l *ledger.Ledger) EconomyServer {
	return &economy{ledger: l}
}

type economy struct {
	ledger *ledger.Ledger
}

func (e *economy) Balance(_ context.Context, req *BalanceRequest) (*BalanceResponse, error) {
	b, err := e.ledger.Balance(req.GuildID, req.UserID)
	if err != nil {
		return nil, Status(err)
	}
	resp := balanceResponse(b)
	return &resp, nil
}

func (e *economy) Transaction(_ context.Context, req *TransactionRequest) (*ReceiptResponse, error) {
	entries := make([]ledger.Entry, len(req.Entries))
	for i, en := range req.Entries {
		entries[i] = ledger.Entry{UserID: en.UserID, Delta: en.Delta}
	}
	r, err := e.ledger.Transaction(req.GuildID, entries)
	if err != nil {
		return nil, Status(err)
	}
	return receiptResponse(r), nil
}

func (e *economy) Transfer(_ context.Context, req *TransferRequest) (*ReceiptResponse, error) {
	r, err := e.ledger.Transfer(req.GuildID, req.FromUserID, req.ToUserID, req.Amount)
	if err != nil {
		return nil, Status(err)
	}
	return receiptResponse(r), nil
}

func (e *economy) Exchange(_ context.Context, req *ExchangeRequest) (*ExchangeResponse, error) {
	var dir ledger.Direction
	switch strings.ToLower(req.Direction) {
	case "buy":
		dir = ledger.BuyCur2
	case "sell":
		dir = ledger.SellCur2
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown exchange direction %q", req.Direction)
	}
	res, err := e.ledger.Exchange(req.GuildID, req.UserID, dir, req.Amount)
	if err != nil {
		return nil, Status(err)
	}
	return &ExchangeResponse{
		Balance:   balanceResponse(res.Balance),
		Price:     res.Price.String(),
		Cur1Delta: res.Cur1Delta,
		Cur2Delta: res.Cur2Delta,
	}, nil
}

func (e *economy) Daily(_ context.Context, req *ClaimRequest) (*ClaimResponse, error) {
	c, err := e.ledger.Daily(req.GuildID, req.UserID)
	if err != nil {
		return nil, Status(err)
	}
	return claimResponse(c), nil
}

func (e *economy) Weekly(_ context.Context, req *ClaimRequest) (*ClaimResponse, error) {
	c, err := e.ledger.Weekly(req.GuildID, req.UserID)
	if err != nil {
		return nil, Status(err)
	}
	return claimResponse(c), nil
}
