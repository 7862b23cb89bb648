package bus

import (
	"github.com/wagoodman/go-partybus"

	"github.com/flyingcircus/vulnix/vulnix/event"
)

func Report(report string) {
	Publish(partybus.Event{
		Type:  event.NonRootCommandFinished,
		Value: report,
	})
}
