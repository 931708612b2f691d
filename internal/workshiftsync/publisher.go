package workshiftsync

import "context"

type Sender interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Publisher puts events on the workshift exchange in the same format the
// consumer reads.
type Publisher struct {
	sender   Sender
	exchange string
}

func NewPublisher(sender Sender, exchange string) *Publisher {
	return &Publisher{sender: sender, exchange: exchange}
}

func (p *Publisher) Publish(ctx context.Context, e Event) error {
	key, body, err := Encode(e)
	if err != nil {
		return err
	}
	return p.sender.Publish(ctx, p.exchange, key, body)
}
