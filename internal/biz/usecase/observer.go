package usecase

// Observer receives pipeline events for metrics
type Observer interface {
	Inbound()
	Duplicate()
	Dropped(reason string)
	Turn(batchSize int)
	Outbound(kind string)
	SendRetry()
	Error()
}

// NopObserver discards every event
type NopObserver struct{}

func (NopObserver) Inbound()        {}
func (NopObserver) Duplicate()      {}
func (NopObserver) Dropped(string)  {}
func (NopObserver) Turn(int)        {}
func (NopObserver) Outbound(string) {}
func (NopObserver) SendRetry()      {}
func (NopObserver) Error()          {}
