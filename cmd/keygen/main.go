package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"github.com/xdex-labs/xdex-go/params"
	"github.com/xdex-labs/xdex-go/pkg/util"
	"github.com/xdex-labs/xdex-go/pkg/wallet"
)

// keygen creates (or shows) the function-call key for an account so the
// gateway can be seeded with its public key out of band.
func main() {
	account := flag.String("account", "", "account id to generate a key for")
	flag.Parse()
	if *account == "" {
		log.Fatal("usage: keygen -account <account-id>")
	}

	cfg := params.LoadFromEnv("")
	logger, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ks, err := wallet.OpenKeyStore(cfg.Wallet.KeyStorePath)
	if err != nil {
		log.Fatalf("keystore: %v", err)
	}
	defer ks.Close()

	w := wallet.New(cfg.Chain.Network, *account, cfg.Gateway.URL, ks, logger.Sugar())
	if err := w.RequestSignIn(wallet.SignInConfig{ContractID: cfg.Chain.ContractID}); err != nil {
		log.Fatalf("sign in: %v", err)
	}

	fmt.Printf("account:    %s\n", *account)
	fmt.Printf("network:    %s\n", cfg.Chain.Network)
	fmt.Printf("public key: %s\n", hex.EncodeToString(w.PublicKey()))
}
