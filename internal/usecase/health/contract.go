package health

import "context"

// DBPinger checks document store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CachePinger checks window cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
