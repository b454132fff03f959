package client

// RunStop is implemented by every long running part of the bot: the
// Telegram transport, the alerter, the config watcher and the HTTP API.
// Warning!!! Stop() may get called after Run() has exited when using
// mechanisms like run.Group, so be sure that Stop() never blocks -- it must
// return for things to work properly.
type RunStop interface {
	Run() error
	Stop(error)
}
