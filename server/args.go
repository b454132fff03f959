package server

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/simpleiot/budgetbot/store"
	"github.com/simpleiot/budgetbot/system"
)

// default option values, env vars are only considered when a flag is left
// at its default
const (
	defaultNatsServer = "nats://127.0.0.1:4222"
	defaultNatsPort   = 4222
	defaultHTTPPort   = "8119"
	defaultConfig     = "budgetbot.yaml"
	defaultSqlite     = "budgetbot.sqlite"
	defaultCreds      = "gdrive_creds.json"
	defaultSheetTitle = "Budva expenses for bot"
	defaultIncomeTab  = "Income"
)

func envString(v, def, env string) string {
	if v == def {
		if e := os.Getenv(env); e != "" {
			return e
		}
	}
	return v
}

func envInt(v, def int, env string) (int, error) {
	if v == def {
		if e := os.Getenv(env); e != "" {
			n, err := strconv.Atoi(e)
			if err != nil {
				return 0, fmt.Errorf("Error parsing %v: %w", env, err)
			}
			return n, nil
		}
	}
	return v, nil
}

func envBool(v bool, env string) bool {
	if !v {
		if b, err := strconv.ParseBool(os.Getenv(env)); err == nil {
			return b
		}
	}
	return v
}

// Args parses budgetbot command line options. Callers can add their own
// flags to flags before calling Args.
func Args(args []string, flags *flag.FlagSet) (Options, error) {
	// =============================================
	// Command line options
	// =============================================
	if flags == nil {
		flags = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	}

	// telegram
	flagToken := flags.String("token", "", "Telegram bot token")
	flagTelegramEndpoint := flags.String("telegramEndpoint", "", "Telegram API endpoint format, for testing")
	flagKeepPending := flags.Bool("keepPending", false, "process updates sent while the bot was down")

	// ledger
	flagStore := flags.String("store", string(store.TypeSheets), "ledger backend: sheets or sqlite")
	flagSqliteFile := flags.String("sqliteFile", defaultSqlite, "SQLite ledger file")
	flagCreds := flags.String("creds", defaultCreds, "Google service account key file")
	flagSheetID := flags.String("sheetID", "", "spreadsheet ID, takes precedence over sheetTitle")
	flagSheetTitle := flags.String("sheetTitle", defaultSheetTitle, "spreadsheet title")
	flagExpenseTab := flags.String("expenseTab", "", "expense worksheet, defaults to the first one")
	flagIncomeTab := flags.String("incomeTab", defaultIncomeTab, "income worksheet")

	// domain config
	flagConfig := flags.String("config", defaultConfig, "budgetbot YAML config file")

	// http api
	flagHTTPPort := flags.String("httpPort", defaultHTTPPort, "HTTP API port, empty disables the API")
	flagAPISecret := flags.String("apiSecret", "", "HS256 secret for API tokens, empty disables the v1 API")

	// nats
	flagNatsServer := flags.String("natsServer", defaultNatsServer, "NATS Server")
	flagNatsPort := flags.Int("natsPort", defaultNatsPort, "embedded NATS server port")
	flagNatsHTTPPort := flags.Int("natsHTTPPort", 0, "embedded NATS server monitoring port, 0 disables")
	flagNatsDisableServer := flags.Bool("natsDisableServer", false, "disable NATS server (if you want to run NATS separately)")
	flagNatsToken := flags.String("natsToken", "", "NATS auth token")

	// logging
	flagSyslog := flags.Bool("syslog", false, "log to syslog instead of stdout")
	flagLogDir := flags.String("logDir", "", "also write the log to budgetbot.log in this directory")
	flagDebugHTTP := flags.Bool("debugHttp", false, "dump http requests")
	flagDebugLifecycle := flags.Bool("debugLifecycle", false, "debug program lifecycle")
	flagDebugTelegram := flags.Bool("debugTelegram", false, "dump telegram API calls")

	if err := flags.Parse(args); err != nil {
		return Options{}, err
	}

	// =============================================
	// NATS stuff
	// =============================================
	natsPort, err := envInt(*flagNatsPort, defaultNatsPort, "BUDGETBOT_NATS_PORT")
	if err != nil {
		return Options{}, err
	}

	natsHTTPPort, err := envInt(*flagNatsHTTPPort, 0, "BUDGETBOT_NATS_HTTP_PORT")
	if err != nil {
		return Options{}, err
	}

	natsTLSTimeout := 0.5
	if s := os.Getenv("BUDGETBOT_NATS_TLS_TIMEOUT"); s != "" {
		natsTLSTimeout, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return Options{}, fmt.Errorf("Error parsing nats TLS timeout: %w", err)
		}
	}

	if *flagSyslog {
		err := system.EnableSyslog()
		if err != nil {
			log.Println("Error enabling syslog: ", err)
		}
	}

	o := Options{
		Token:             envString(*flagToken, "", "BUDGETBOT_TELEGRAM_TOKEN"),
		TelegramEndpoint:  *flagTelegramEndpoint,
		KeepPending:       *flagKeepPending,
		Store:             store.Type(envString(*flagStore, string(store.TypeSheets), "BUDGETBOT_STORE")),
		SqliteFile:        envString(*flagSqliteFile, defaultSqlite, "BUDGETBOT_SQLITE_FILE"),
		Creds:             envString(*flagCreds, defaultCreds, "BUDGETBOT_CREDS"),
		SheetID:           envString(*flagSheetID, "", "BUDGETBOT_SHEET_ID"),
		SheetTitle:        envString(*flagSheetTitle, defaultSheetTitle, "BUDGETBOT_SHEET_TITLE"),
		ExpenseTab:        envString(*flagExpenseTab, "", "BUDGETBOT_EXPENSE_TAB"),
		IncomeTab:         envString(*flagIncomeTab, defaultIncomeTab, "BUDGETBOT_INCOME_TAB"),
		ConfigFile:        envString(*flagConfig, defaultConfig, "BUDGETBOT_CONFIG"),
		HTTPPort:          envString(*flagHTTPPort, defaultHTTPPort, "BUDGETBOT_HTTP_PORT"),
		APISecret:         envString(*flagAPISecret, "", "BUDGETBOT_API_SECRET"),
		NatsServer:        envString(*flagNatsServer, defaultNatsServer, "BUDGETBOT_NATS_SERVER"),
		NatsPort:          natsPort,
		NatsHTTPPort:      natsHTTPPort,
		NatsDisableServer: envBool(*flagNatsDisableServer, "BUDGETBOT_NATS_DISABLE_SERVER"),
		NatsToken:         envString(*flagNatsToken, "", "BUDGETBOT_NATS_TOKEN"),
		NatsTLSCert:       os.Getenv("BUDGETBOT_NATS_TLS_CERT"),
		NatsTLSKey:        os.Getenv("BUDGETBOT_NATS_TLS_KEY"),
		NatsTLSTimeout:    natsTLSTimeout,
		TwilioSID:         os.Getenv("BUDGETBOT_TWILIO_SID"),
		TwilioAuth:        os.Getenv("BUDGETBOT_TWILIO_AUTH"),
		TwilioFrom:        os.Getenv("BUDGETBOT_TWILIO_FROM"),
		LogDir:            envString(*flagLogDir, "", "BUDGETBOT_LOG_DIR"),
		DebugHTTP:         *flagDebugHTTP,
		DebugLifecycle:    *flagDebugLifecycle,
		DebugTelegram:     *flagDebugTelegram,
	}

	switch o.Store {
	case store.TypeSheets, store.TypeSqlite:
	default:
		return o, fmt.Errorf("Unknown store: %v", o.Store)
	}

	return o, nil
}

// LedgerParams returns the ledger settings from the options
func (o Options) LedgerParams() store.Params {
	return store.Params{
		Type:       o.Store,
		SqliteFile: o.SqliteFile,
		Sheets: store.SheetsOptions{
			CredsFile:  o.Creds,
			ID:         o.SheetID,
			Title:      o.SheetTitle,
			ExpenseTab: o.ExpenseTab,
			IncomeTab:  o.IncomeTab,
		},
	}
}
