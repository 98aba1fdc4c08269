package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundshadow/fundshadow-client/api"
	"github.com/fundshadow/fundshadow-client/config"
	"github.com/fundshadow/fundshadow-client/gateway"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/registry"
	"github.com/fundshadow/fundshadow-client/service"
	"github.com/fundshadow/fundshadow-client/storage"
	"github.com/fundshadow/fundshadow-client/voting"
	"github.com/fundshadow/fundshadow-client/wallet"
	"github.com/fundshadow/fundshadow-client/web3"
	"github.com/vocdoni/arbo/memdb"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func main() {
	conf, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, config.Usage())
		os.Exit(2)
	}
	log.Init(conf.Log.Level, conf.Log.Output, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, conf); err != nil {
		log.Fatal(err)
	}
}

func openStorage(datadir string) (*storage.Storage, error) {
	if datadir == "" {
		log.Warnw("no datadir given, local state is kept in memory")
		return storage.New(memdb.New()), nil
	}
	database, err := metadb.New(db.TypePebble, datadir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return storage.New(database), nil
}

func openWallet(conf *config.Config) (*wallet.KeyWallet, error) {
	if conf.Wallet.PrivKey == "" {
		w, err := wallet.GenerateKeyWallet()
		if err != nil {
			return nil, err
		}
		log.Warnw("using an ephemeral account", "address", w.Address().Hex())
		return w, nil
	}
	return wallet.NewKeyWallet(conf.Wallet.PrivKey)
}

func run(ctx context.Context, conf *config.Config) error {
	stg, err := openStorage(conf.Datadir)
	if err != nil {
		return err
	}
	defer stg.Close()

	var (
		backend   gateway.Backend
		contracts *web3.Contracts
	)
	if conf.Dev {
		mock, err := gateway.NewMockBackend()
		if err != nil {
			return fmt.Errorf("failed to create development backend: %w", err)
		}
		log.Warnw("running against an in-memory contract")
		backend = mock
	} else {
		contracts, err = web3.NewContracts(common.HexToAddress(conf.Web3.Contract), conf.Web3.RPC[0])
		if err != nil {
			return err
		}
		for _, rpc := range conf.Web3.RPC[1:] {
			if err := contracts.AddWeb3Endpoint(rpc); err != nil {
				log.Warnw("failed to add endpoint", "rpc", rpc, "error", err.Error())
			}
		}
		backend = contracts
	}

	w, err := openWallet(conf)
	if err != nil {
		return err
	}
	enc, err := gateway.EncoderFromBackend(ctx, backend, conf.Codec.Bits)
	if err != nil {
		return err
	}

	gw := gateway.New(backend, w, enc,
		gateway.WithStorage(stg),
		gateway.WithPollInterval(conf.Web3.PollInterval))
	defer gw.Close()

	reg := registry.New(gw,
		registry.WithConcurrency(conf.Reads.Concurrency),
		registry.WithRetryTime(conf.Reads.RetryTime))
	ids, err := stg.CampaignIDs()
	if err != nil {
		return fmt.Errorf("failed to load campaign ids: %w", err)
	}
	reg.Track(ids...)

	resumed, err := gw.Resume()
	if err != nil {
		return err
	}
	for _, tx := range resumed {
		go trackOutcome(ctx, reg, tx)
	}

	mgr := voting.NewManager(gw, reg, stg)
	defer mgr.Close()
	if n, err := mgr.Restore(ctx); err != nil {
		log.Warnw("failed to restore vote sessions", "error", err.Error())
	} else if n > 0 {
		log.Infow("restored vote sessions", "count", n)
	}

	if contracts != nil {
		monitor := service.NewEventMonitor(contracts, reg, stg, conf.Web3.PollInterval, conf.Web3.Subscribe)
		if err := monitor.Start(ctx); err != nil {
			return err
		}
		defer monitor.Stop()
	}

	apiService := service.NewAPI(&api.APIConfig{
		Host:     conf.API.Host,
		Port:     conf.API.Port,
		Decimals: conf.API.Decimals,
		Gateway:  gw,
		Registry: reg,
		Voting:   mgr,
	})
	if err := apiService.Start(ctx); err != nil {
		return err
	}
	defer apiService.Stop()
	host, port := apiService.HostPort()
	log.Infow("fund shadow client ready",
		"account", w.Address().Hex(),
		"api", fmt.Sprintf("http://%s:%d", host, port),
		"knownCampaigns", len(ids))

	<-ctx.Done()
	log.Infow("shutting down")
	return nil
}

// trackOutcome feeds the registry with the result of a write resumed from a
// previous run.
func trackOutcome(ctx context.Context, reg *registry.Registry, tx *gateway.PendingTx) {
	outcome, err := tx.Wait(ctx)
	if err != nil || outcome.Phase != gateway.PhaseConfirmed {
		return
	}
	if outcome.HasCreatedID {
		reg.Track(outcome.CreatedID)
		return
	}
	if tx.Op != gateway.OpUpdateDonorProfile {
		reg.Invalidate(tx.CampaignID)
	}
}
