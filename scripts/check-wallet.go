//go:build ignore

// Prints the wallet address derived for a platform ID and, when an RPC URL
// is given, its live balance.
//
// Usage:
//
//	go run scripts/check-wallet.go -secret <key secret> -id 123456789 [-rpc http://localhost:8545]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/promptcash/paybot/pkg/chain"
	"github.com/promptcash/paybot/pkg/wallet"
)

func main() {
	secret := flag.String("secret", "", "payments key secret")
	platformID := flag.Int64("id", 0, "platform user ID")
	rpcURL := flag.String("rpc", "", "chain RPC URL (optional)")
	flag.Parse()

	if *secret == "" || *platformID == 0 {
		fmt.Fprintln(os.Stderr, "usage: check-wallet -secret <key secret> -id <platform id> [-rpc <url>]")
		os.Exit(2)
	}

	seed := wallet.MasterKeyFromSecret(*secret)
	kp, err := wallet.DeriveKeyPair(*platformID, seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "derive: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("platform id: %d\naddress:     %s\n", *platformID, kp.Address)

	if *rpcURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := chain.NewRPCClient(ctx, *rpcURL, chain.Options{}, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	balance, err := client.GetBalance(ctx, kp.Address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("balance:     %s PC\n", balance.String())
}
