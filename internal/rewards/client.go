// Package rewards mints activity-reward tokens and achievement NFTs on the
// blockchain service and records every successful mint in an append-only
// ledger. Minting is best-effort: a chain outage never fails the user action
// that triggered it.
package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const mintTimeout = 15 * time.Second

// TokenReceipt is the blockchain service's response to a token mint.
type TokenReceipt struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     int64  `json:"blockNumber"`
}

// NFTReceipt is the blockchain service's response to an NFT mint.
type NFTReceipt struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	TokenID         string `json:"tokenId"`
}

// Balance is a wallet's reward-token balance.
type Balance struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// OwnedNFT is one NFT held by a wallet.
type OwnedNFT struct {
	TokenID         string         `json:"tokenId"`
	AchievementType string         `json:"achievementType"`
	Metadata        map[string]any `json:"metadata"`
}

// BlockchainClient calls the blockchain gateway service.
type BlockchainClient struct {
	baseURL string
	client  *http.Client
}

// NewBlockchainClient creates a blockchain gateway client.
func NewBlockchainClient(baseURL string) *BlockchainClient {
	return &BlockchainClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: mintTimeout},
	}
}

type tokenMintRequest struct {
	ToAddress string  `json:"toAddress"`
	Amount    float64 `json:"amount"`
	Activity  string  `json:"activity"`
}

type nftMintRequest struct {
	ToAddress       string         `json:"toAddress"`
	AchievementType string         `json:"achievementType"`
	Metadata        map[string]any `json:"metadata"`
}

// MintToken mints reward tokens to a wallet. The idempotency key lets the
// gateway deduplicate retried requests for the same logical mint.
func (c *BlockchainClient) MintToken(ctx context.Context, wallet string, amount decimal.Decimal, activity, idempotencyKey string) (*TokenReceipt, error) {
	amt, _ := amount.Float64()
	req := tokenMintRequest{ToAddress: wallet, Amount: amt, Activity: activity}

	var receipt TokenReceipt
	if err := c.postJSON(ctx, c.baseURL+"/api/blockchain/token/mint", idempotencyKey, req, &receipt); err != nil {
		return nil, fmt.Errorf("mint token for %s: %w", activity, err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("mint token for %s: gateway reported failure", activity)
	}
	return &receipt, nil
}

// MintNFT mints an achievement NFT to a wallet.
func (c *BlockchainClient) MintNFT(ctx context.Context, wallet, achievementKind string, metadata map[string]any, idempotencyKey string) (*NFTReceipt, error) {
	req := nftMintRequest{ToAddress: wallet, AchievementType: achievementKind, Metadata: metadata}

	var receipt NFTReceipt
	if err := c.postJSON(ctx, c.baseURL+"/api/blockchain/nft/mint", idempotencyKey, req, &receipt); err != nil {
		return nil, fmt.Errorf("mint nft %s: %w", achievementKind, err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("mint nft %s: gateway reported failure", achievementKind)
	}
	return &receipt, nil
}

// TokenBalance reads a wallet's reward-token balance.
func (c *BlockchainClient) TokenBalance(ctx context.Context, wallet string) (*Balance, error) {
	var balance Balance
	if err := c.getJSON(ctx, c.baseURL+"/api/blockchain/token/balance?address="+wallet, &balance); err != nil {
		return nil, fmt.Errorf("token balance for %s: %w", wallet, err)
	}
	return &balance, nil
}

// OwnedNFTs lists the achievement NFTs held by a wallet.
func (c *BlockchainClient) OwnedNFTs(ctx context.Context, wallet string) ([]OwnedNFT, error) {
	var owned []OwnedNFT
	if err := c.getJSON(ctx, c.baseURL+"/api/blockchain/nft/owned?address="+wallet, &owned); err != nil {
		return nil, fmt.Errorf("owned nfts for %s: %w", wallet, err)
	}
	return owned, nil
}

func (c *BlockchainClient) postJSON(ctx context.Context, url, idempotencyKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *BlockchainClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
