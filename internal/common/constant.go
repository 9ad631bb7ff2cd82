package common

const (
	// ServiceName is the name under which the gRPC health status of the
	// todo API is published.
	ServiceName = "todokeeper.Todos"

	// TempIDPrefix marks ids of optimistic records that only exist in the
	// client cache until the server acknowledges them.
	TempIDPrefix = "temp-"
)
