/*
Package client contains the long running parts of budgetbot that sit next
to the bot itself.

Every client implements [RunStop] so it can be added to a [RunGroup]. The
[Alerter] listens for added expenses on the bus and sends a [Notifier]
message the first time a monthly budget is exceeded. The [ConfigWatcher]
reloads the YAML config when it changes. [Log] dumps bus events for the
"budgetbot log" command.

[Connect] connects to the NATS server used as the bus.
*/
package client
