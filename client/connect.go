package client

import (
	"log"
	"net"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/simpleiot/budgetbot/system"
)

// ConnectOptions describes how to reach the NATS server
type ConnectOptions struct {
	URI       string
	AuthToken string
	// name shown in server connection info
	Name   string
	Closed func()
}

// Connect connects to NATS and keeps reconnecting with an exponential
// backoff when the connection drops
func Connect(o ConnectOptions) (*nats.Conn, error) {
	authEnabled := "no"
	if o.AuthToken != "" {
		authEnabled = "yes"
	}

	opts := func(no *nats.Options) error {
		nats.Name(o.Name)(no)
		nats.Timeout(10 * time.Second)(no)
		nats.PingInterval(2 * time.Minute)(no)
		nats.MaxPingsOutstanding(3)(no)
		nats.RetryOnFailedConnect(true)(no)
		nats.ReconnectBufSize(128 * 1024)(no)
		nats.MaxReconnects(-1)(no)
		nats.SetCustomDialer(&net.Dialer{
			KeepAlive: -1,
		})(no)
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			delay := system.ExpBackoff(attempts, time.Minute)
			log.Printf("NATS reconnect attempts: %v, delay: %v", attempts, delay)
			return delay
		})(no)
		nats.Token(o.AuthToken)(no)
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			var subject string
			if sub != nil {
				subject = sub.Subject
			}
			log.Printf("NATS client error, sub: %v, err: %s\n", subject, err)
		})(no)
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("NATS client: reconnected")
		})(no)
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Println("NATS client: disconnected: ", err)
			}
		})(no)
		nats.ClosedHandler(func(_ *nats.Conn) {
			if o.Closed != nil {
				o.Closed()
			}
		})(no)

		return nil
	}

	log.Printf("NATS connect to: %v, auth enabled: %v", o.URI, authEnabled)
	return nats.Connect(o.URI, opts)
}
