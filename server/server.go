// Package server wires the bot, its ledger and background clients into a
// single process
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/oklog/run"
	"github.com/simpleiot/budgetbot/api"
	"github.com/simpleiot/budgetbot/bot"
	"github.com/simpleiot/budgetbot/client"
	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/msg"
	"github.com/simpleiot/budgetbot/natsserver"
	"github.com/simpleiot/budgetbot/store"
	"github.com/simpleiot/budgetbot/telegram"
)

// ErrServerStopped is returned when the server is stopped
var ErrServerStopped = errors.New("Server stopped")

// Options used for starting budgetbot
type Options struct {
	Token            string
	TelegramEndpoint string
	KeepPending      bool

	Store      store.Type
	SqliteFile string
	Creds      string
	SheetID    string
	SheetTitle string
	ExpenseTab string
	IncomeTab  string

	ConfigFile string

	HTTPPort  string
	APISecret string

	NatsServer        string
	NatsPort          int
	NatsHTTPPort      int
	NatsDisableServer bool
	NatsToken         string
	NatsTLSCert       string
	NatsTLSKey        string
	NatsTLSTimeout    float64

	TwilioSID  string
	TwilioAuth string
	TwilioFrom string

	LogDir         string
	DebugHTTP      bool
	DebugLifecycle bool
	DebugTelegram  bool
}

// Server represents a budgetbot process
type Server struct {
	options     Options
	chStop      chan struct{}
	stopOnce    sync.Once
	chWaitStart chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewServer creates a new server
func NewServer(o Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		options:     o,
		chStop:      make(chan struct{}),
		chWaitStart: make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// LoadConfig loads the domain config. A missing file gives the defaults so
// the file can be created while the bot runs.
func LoadConfig(path string) (data.Config, error) {
	c, err := data.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Config file %v not found, using defaults\n", path)
		return data.DefaultConfig(), nil
	}
	return c, err
}

// Run the server -- only returns if there is an error or it is stopped
func (s *Server) Run() error {
	var g run.Group

	logLS := func(m ...any) {}

	if s.options.DebugLifecycle {
		logLS = func(m ...any) {
			log.Println(m...)
		}
	}

	o := s.options

	config, err := LoadConfig(o.ConfigFile)
	if err != nil {
		return err
	}

	if len(config.AuthorizedUsers) == 0 {
		log.Println("WARNING: no authorized users, the bot will refuse everyone")
	}

	// ====================================
	// Nats server
	// ====================================
	var natsServer *server.Server
	chClientsDone := make(chan struct{})

	if !o.NatsDisableServer {
		natsServer, err = natsserver.New(natsserver.Options{
			Port:       o.NatsPort,
			HTTPPort:   o.NatsHTTPPort,
			Auth:       o.NatsToken,
			TLSCert:    o.NatsTLSCert,
			TLSKey:     o.NatsTLSKey,
			TLSTimeout: o.NatsTLSTimeout,
		})
		if err != nil {
			return fmt.Errorf("Error setting up nats server: %w", err)
		}

		go natsServer.Start()
		defer natsServer.Shutdown()

		if !natsServer.ReadyForConnections(10 * time.Second) {
			return errors.New("timeout waiting for nats server")
		}

		g.Add(func() error {
			natsServer.WaitForShutdown()
			logLS("LS: Exited: nats server")
			return errors.New("NATS server stopped")
		}, func(_ error) {
			// clients are stopped first so the alerter can unsubscribe
			go func() {
				<-chClientsDone
				natsServer.Shutdown()
				logLS("LS: Shutdown: nats server")
			}()
		})
	}

	// ====================================
	// Nats client
	// ====================================
	nc, err := client.Connect(client.ConnectOptions{
		URI:       o.NatsServer,
		AuthToken: o.NatsToken,
		Name:      "budgetbot",
	})
	if err != nil {
		return fmt.Errorf("Error connecting to nats: %w", err)
	}
	defer nc.Close()

	// ====================================
	// Ledger
	// ====================================
	ledger, err := store.NewLedger(s.ctx, o.LedgerParams())
	if err != nil {
		return fmt.Errorf("Error opening ledger: %w", err)
	}
	defer ledger.Close()

	// ====================================
	// Telegram + bot
	// ====================================
	tg, err := telegram.New(telegram.Options{
		Token:       o.Token,
		Endpoint:    o.TelegramEndpoint,
		KeepPending: o.KeepPending,
		Debug:       o.DebugTelegram,
	})
	if err != nil {
		return err
	}

	b := bot.New(ledger, tg, nc, config)
	tg.SetHandler(b)

	// ====================================
	// Background clients
	// ====================================
	clients := client.NewRunGroup("budgetbot clients", o.DebugLifecycle)

	clients.Add("telegram", tg)

	notifiers := []client.Notifier{client.NewTelegramNotifier(tg)}
	twilio := msg.NewTwilio(o.TwilioSID, o.TwilioAuth, o.TwilioFrom)
	if twilio.Configured() {
		notifiers = append(notifiers, client.NewSMSNotifier(twilio))
	} else if len(config.Alerts.SMS) > 0 {
		log.Println("alerts.sms is set but Twilio is not configured")
	}

	alerter := client.NewAlerter(nc, ledger, config, notifiers...)
	clients.Add("alerter", alerter)

	clients.Add("config watcher",
		client.NewConfigWatcher(o.ConfigFile, b.SetConfig, alerter.SetConfig))

	if o.HTTPPort != "" {
		httpAPI, err := api.NewServer(api.ServerArgs{
			Port:   o.HTTPPort,
			Ledger: ledger,
			Secret: o.APISecret,
			Debug:  o.DebugHTTP,
		})
		if err != nil {
			return err
		}
		clients.Add("http api", httpAPI)
	}

	g.Add(func() error {
		defer close(chClientsDone)
		err := clients.Run()
		logLS("LS: Exited: clients: ", err)
		return err
	}, func(err error) {
		clients.Stop(err)
		logLS("LS: Shutdown: clients")
	})

	// Give us a way to stop the server
	// and signal to waiters we have started
	chShutdown := make(chan struct{})
	g.Add(func() error {
		for {
			select {
			case <-s.chWaitStart:
				// No-op, reading channel is enough to unblock wait
			case <-s.chStop:
				logLS("LS: Exited: stop handler")
				return ErrServerStopped
			case <-chShutdown:
				logLS("LS: Exited: stop handler")
				return nil
			}
		}
	}, func(_ error) {
		close(chShutdown)
		logLS("LS: Shutdown: stop handler")
	})

	log.Println("budgetbot started")

	return g.Run()
}

// Stop server
func (s *Server) Stop(_ error) {
	s.stopOnce.Do(func() {
		s.cancel()
		close(s.chStop)
	})
}

// WaitStart waits for the server to start
func (s *Server) WaitStart(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.New("Server wait timeout or canceled")
	case s.chWaitStart <- struct{}{}:
		return nil
	}
}
