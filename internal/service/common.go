package service

import (
	"context"
	"encoding/json"
	"time"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"
	"pharmamarket/internal/store"

	"github.com/jmoiron/sqlx"
)

// postCommitTimeout bounds the fire-and-forget side effects dispatched after
// a transaction commits.
const postCommitTimeout = 5 * time.Second

// orderCacheTTL bounds how long a cached order summary may serve reads.
const orderCacheTTL = 5 * time.Minute

func appendEventWithMeta(ctx context.Context, st *store.Store, tx *sqlx.Tx, event *models.OrderEvent, meta map[string]any) error {
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			return apperr.Internal("failed to encode event meta", err)
		}
		event.Meta = raw
	}
	return st.AppendEventTx(ctx, tx, event)
}
