package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[IngestEventsMessage]     = (*IngestEventsCommand)(nil)
	_ gocmd.Commander[RefreshTokensMessage]    = (*RefreshTokensCommand)(nil)
)
