package main

import (
	"os"

	"github.com/goccy/go-json"

	"github.com/saveblush/reraw-feed/core/cctx"
	"github.com/saveblush/reraw-feed/core/config"
	"github.com/saveblush/reraw-feed/core/utils/logger"
	"github.com/saveblush/reraw-feed/pgk/dispatcher"
	"github.com/saveblush/reraw-feed/pgk/eventcache"
	"github.com/saveblush/reraw-feed/pgk/feed"
	"github.com/saveblush/reraw-feed/pgk/follows"
	"github.com/saveblush/reraw-feed/pgk/gateway"
	"github.com/saveblush/reraw-feed/pgk/nips/nip98"
	"github.com/saveblush/reraw-feed/pgk/relaypool"
	"github.com/saveblush/reraw-feed/pgk/verification"
)

// app one session: config, logger and the wired services
type app struct {
	cctx         *cctx.Context
	relays       *relaypool.Service
	gateway      *gateway.Client
	dispatcher   *dispatcher.Service
	follows      *follows.Service
	feeds        *feed.Service
	verification *verification.Store
	signer       *nip98.KeySigner
	issuer       *nip98.Issuer
}

func newApp() (*app, error) {
	// Init configuration
	cf, err := config.InitConfig(configPath)
	if err != nil {
		return nil, err
	}

	// Init logger
	log := logger.New(cf.App.Environment.Production() && !verbose)
	c := cctx.New(cf, log)

	// Init connection database
	if cf.Cache.Driver == config.CachePostgres {
		if err := c.OpenDatabase(); err != nil {
			log.Warnf("init connection db error, using memory cache: %s", err)
		}
	}

	a := &app{cctx: c}
	a.relays = relaypool.NewService(c)
	a.gateway, err = gateway.NewService(c)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dispatcher = dispatcher.NewService(c, a.relays, eventcache.NewService(c), a.gateway)

	pubkey := cf.App.Pubkey
	var signer nip98.Signer
	if cf.Auth.SecretKey != "" {
		a.signer, err = nip98.NewKeySigner(cf.Auth.SecretKey)
		if err != nil {
			a.Close()
			return nil, err
		}
		signer = a.signer
		if pubkey == "" {
			pubkey = a.signer.Pubkey()
		}
	}

	a.verification, err = verification.NewService(c)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.issuer = nip98.NewIssuer(signer, a.verification, nil, log)

	a.follows = follows.NewService(a.dispatcher, pubkey, log)
	a.feeds, err = feed.NewService(c, a.dispatcher, a.follows)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.relays != nil {
		a.relays.Close()
	}
	a.cctx.Close()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
