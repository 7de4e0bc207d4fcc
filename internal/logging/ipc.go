package logging

import (
	"context"
	"encoding/json"

	"nohands.dev/go/nohands/internal/ipc"
)

// MethodLogs returns buffered entries
const MethodLogs = "logs"

// Register installs the logs method
func (b *Buffer) Register(r ipc.Registrar) {
	r.Handle(MethodLogs, func(_ context.Context, _ *ipc.Peer, params json.RawMessage) (any, error) {
		var q Query
		if err := ipc.DecodeParams(params, &q); err != nil {
			return nil, err
		}
		return b.Query(q), nil
	})
}
