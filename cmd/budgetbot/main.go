package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/simpleiot/budgetbot/api"
	"github.com/simpleiot/budgetbot/client"
	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/server"
	"github.com/simpleiot/budgetbot/store"
	"github.com/simpleiot/budgetbot/system"
)

// goreleaser will replace version with Git version. You can also pass version
// into the version into the go build:
//
//	go build -ldflags="-X main.version=1.2.3"
var version = "Development"

func main() {
	// global options
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagVersion := flags.Bool("version", false, "Print app version")
	flags.Usage = func() {
		fmt.Println("usage: budgetbot [OPTION]... COMMAND [OPTION]...")
		fmt.Println("Global options:")
		flags.PrintDefaults()
		fmt.Println()
		fmt.Println("Available commands:")
		fmt.Println("  - serve (run the bot, default)")
		fmt.Println("  - log (log ledger events from the bus)")
		fmt.Println("  - token (print an HTTP API token)")
		fmt.Println("  - check (check the config and print the last ledger rows)")
	}

	flags.Parse(os.Args[1:])

	if *flagVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// extract sub command and its arguments
	args := flags.Args()

	if len(args) < 1 {
		// run serve command by default
		args = []string{"serve"}
	}

	var err error

	switch args[0] {
	case "serve":
		log.Printf("budgetbot %v\n", version)
		err = runServer(args[1:])
		if err != nil {
			log.Println("budgetbot stopped, reason: ", err)
		}
	case "log":
		err = runLog(args[1:])
	case "token":
		err = runToken(args[1:])
	case "check":
		err = runCheck(args[1:])
	default:
		log.Fatal("Unknown command; options: serve, log, token, check")
	}

	if err != nil {
		os.Exit(1)
	}
}

func runServer(args []string) error {
	options, err := server.Args(args, nil)
	if err != nil {
		return err
	}

	if options.LogDir != "" {
		f, err := system.EnableLogFile(options.LogDir)
		if err != nil {
			log.Println("Error enabling log file: ", err)
		} else {
			defer f.Close()
		}
	}

	var g run.Group

	bb := server.NewServer(options)

	g.Add(bb.Run, bb.Stop)

	g.Add(run.SignalHandler(context.Background(),
		syscall.SIGINT, syscall.SIGTERM))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)

	// add check to make sure server started
	chStartCheck := make(chan struct{})
	g.Add(func() error {
		err := bb.WaitStart(ctx)
		if err != nil {
			return errors.New("Timeout waiting for budgetbot to start")
		}
		log.Println("budgetbot running")
		<-chStartCheck
		return nil
	}, func(err error) {
		cancel()
		close(chStartCheck)
	})

	err = g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Println("budgetbot stopped by signal: ", sigErr.Signal)
		return nil
	}

	return err
}

func runLog(args []string) error {
	defaultNatsServer := "nats://localhost:4222"
	flags := flag.NewFlagSet("log", flag.ExitOnError)
	flagNatsServer := flags.String("natsServer", defaultNatsServer, "NATS Server")
	flagAuthToken := flags.String("natsToken", "", "NATS auth token")

	if err := flags.Parse(args); err != nil {
		return err
	}

	// only consider env if command line option is something different
	// that default
	natsServer := *flagNatsServer
	if natsServer == defaultNatsServer {
		natsServerE := os.Getenv("BUDGETBOT_NATS_SERVER")
		if natsServerE != "" {
			natsServer = natsServerE
		}
	}

	authToken := *flagAuthToken
	if authToken == "" {
		authToken = os.Getenv("BUDGETBOT_NATS_TOKEN")
	}

	nc, err := client.Connect(client.ConnectOptions{
		URI:       natsServer,
		AuthToken: authToken,
		Name:      "budgetbot log",
	})
	if err != nil {
		log.Println("Error connecting to NATS server: ", err)
		return err
	}
	defer nc.Close()

	sub, err := client.Log(nc)
	if err != nil {
		log.Println(err)
		return err
	}
	defer sub.Unsubscribe()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	return nil
}

func runToken(args []string) error {
	flags := flag.NewFlagSet("token", flag.ExitOnError)
	flagSecret := flags.String("apiSecret", "", "HS256 secret, same as the server's -apiSecret")
	flagSubject := flags.String("subject", "budgetbot", "token subject")
	flagTTL := flags.Duration("ttl", 0, "token lifetime, 0 never expires")

	if err := flags.Parse(args); err != nil {
		return err
	}

	secret := *flagSecret
	if secret == "" {
		secret = os.Getenv("BUDGETBOT_API_SECRET")
	}

	key, err := api.NewKey(secret)
	if err != nil {
		log.Println("Error: ", err)
		return err
	}

	token, err := key.NewToken(*flagSubject, *flagTTL)
	if err != nil {
		log.Println("Error creating token: ", err)
		return err
	}

	fmt.Println(token)
	return nil
}

func runCheck(args []string) error {
	flags := flag.NewFlagSet("check", flag.ExitOnError)
	flagRows := flags.Int("n", 3, "number of ledger rows to print")

	options, err := server.Args(args, flags)
	if err != nil {
		return err
	}

	config, err := server.LoadConfig(options.ConfigFile)
	if err != nil {
		log.Println("Config error: ", err)
		return err
	}

	fmt.Printf("Config %v OK\n", options.ConfigFile)
	fmt.Println("  currencies:", config.CurrencyCodes())
	fmt.Println("  categories:", config.Categories)
	fmt.Println("  income types:", config.IncomeTypes)
	fmt.Println("  authorized users:", config.AuthorizedUsers)
	for _, b := range config.Budgets {
		fmt.Printf("  budget: %v %v %v\n", b.Category, data.FormatValue(b.Limit), b.Currency)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ledger, err := store.NewLedger(ctx, options.LedgerParams())
	if err != nil {
		log.Println("Ledger error: ", err)
		return err
	}
	defer ledger.Close()

	for _, kind := range []data.Kind{data.KindExpense, data.KindIncome} {
		entries, err := store.Last(ctx, ledger, kind, *flagRows)
		if err != nil {
			log.Printf("Error reading %v entries: %v\n", kind, err)
			return err
		}

		fmt.Printf("Last %v %v entries:\n", len(entries), kind)
		for _, e := range entries {
			fmt.Printf("  %v: %v\n", e.Row, e.ToRow())
		}
	}

	return nil
}
