package export

import (
	"context"

	"github.com/trafficlens/trafficlens/internal/models"
	"github.com/trafficlens/trafficlens/internal/store"
)

// Dump is the raw JSON export envelope. Count is exactly the number of
// serialized exchanges.
type Dump struct {
	Count     int               `json:"count"`
	Exchanges []models.Exchange `json:"exchanges"`
}

// BuildJSON selects exchanges and wraps them in the dump envelope.
func BuildJSON(ctx context.Context, st *store.Store, opts Options) (*Dump, error) {
	exchanges, err := st.List(ctx, opts.Filter, opts.Order, opts.Limit)
	if err != nil {
		return nil, err
	}
	if exchanges == nil {
		exchanges = []models.Exchange{}
	}
	return &Dump{Count: len(exchanges), Exchanges: exchanges}, nil
}
