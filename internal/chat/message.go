package chat

// Message is one chat line waiting to be broadcast.
type Message struct {
	Sender  string
	Content string
}

// String renders the message the way members receive it.
func (m Message) String() string {
	return m.Sender + ": " + m.Content
}
