package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xdex-labs/xdex-go/params"
	"github.com/xdex-labs/xdex-go/pkg/api"
	"github.com/xdex-labs/xdex-go/pkg/engine"
	"github.com/xdex-labs/xdex-go/pkg/ledger"
	"github.com/xdex-labs/xdex-go/pkg/util"
	"github.com/xdex-labs/xdex-go/pkg/wallet"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger()
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		logger, err = util.NewLoggerWithFile(logFile)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ks, err := wallet.OpenKeyStore(cfg.Wallet.KeyStorePath)
	if err != nil {
		sugar.Fatalw("keystore_open_failed", "path", cfg.Wallet.KeyStorePath, "err", err)
	}
	defer ks.Close()

	w := wallet.New(cfg.Chain.Network, cfg.Wallet.AccountID, cfg.Gateway.URL, ks, sugar)
	if cfg.Wallet.AccountID != "" {
		if err := w.RequestSignIn(wallet.SignInConfig{ContractID: cfg.Chain.ContractID}); err != nil {
			sugar.Fatalw("sign_in_failed", "account", cfg.Wallet.AccountID, "err", err)
		}
	} else {
		sugar.Info("no ACCOUNT_ID configured, running read-only")
	}

	client := ledger.NewHTTPClient(cfg.Gateway.URL, w, cfg.Gateway.CallTimeout, sugar)

	view := engine.NewMarketView()
	scheduler := engine.NewRefreshScheduler(client, w, view, sugar)
	notifier := engine.NewStreamNotifier(engine.LogNotifier{Log: sugar})
	accounts := engine.NewAccountStateStore(client, w, cfg.Chain.PlatformToken, engine.NativeConversion{
		DropDigits: cfg.Chain.NativeDropDigits,
		DisplayExp: cfg.Chain.NativeDisplayExp,
	}, sugar)
	controller := engine.NewOrderLifecycleController(client, accounts, scheduler, notifier, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session bootstrap: token list first, then the balance set derived from
	// it, the chain-native balance and the platform-token balance.
	go func() {
		tokens, err := client.GetTokens(ctx)
		if err != nil {
			sugar.Warnw("token_list_failed", "err", err)
		} else if w.AccountID() != "" {
			ids := make([]ledger.TokenID, len(tokens))
			for i, t := range tokens {
				ids[i] = t.ID
			}
			if err := accounts.RefreshAllTokenBalances(ctx, ids); err != nil {
				sugar.Warnw("token_balances_bootstrap_failed", "err", err)
			}
		}
		if w.AccountID() != "" {
			if err := accounts.RefreshNativeBalance(ctx); err != nil {
				sugar.Warnw("native_balance_bootstrap_failed", "err", err)
			}
			if err := accounts.RefreshPlatformTokenBalance(ctx); err != nil {
				sugar.Warnw("platform_balance_bootstrap_failed", "err", err)
			}
		}
		if instrument := os.Getenv("INSTRUMENT"); instrument != "" {
			scheduler.SelectInstrument(ctx, instrument)
		}
	}()

	server := api.NewServer(view, accounts, controller, scheduler, notifier, cfg.API.AllowedOrigins, sugar)
	if err := server.Start(ctx, cfg.API.ListenAddr); err != nil {
		sugar.Fatalw("api_server_failed", "err", err)
	}

	controller.Wait()
	scheduler.Wait()
	sugar.Info("client stopped")
}
