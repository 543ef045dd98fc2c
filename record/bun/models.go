package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/XiangYd616/runq/record"
)

type recordModel struct {
	bun.BaseModel `bun:"table:runq_test_records"`

	CorrelationID string    `bun:"correlation_id,pk"`
	Status        string    `bun:"status,notnull"`
	Error         string    `bun:"error"`
	CancelReason  string    `bun:"cancel_reason"`
	Results       []byte    `bun:"results,type:jsonb"`
	Extra         []byte    `bun:"extra,type:jsonb"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func fromModel(m *recordModel) (*record.Record, error) {
	r := &record.Record{
		CorrelationID: m.CorrelationID,
		Status:        m.Status,
		Error:         m.Error,
		CancelReason:  m.CancelReason,
		Results:       json.RawMessage(m.Results),
		UpdatedAt:     m.UpdatedAt,
	}
	if len(m.Extra) > 0 {
		if err := json.Unmarshal(m.Extra, &r.Extra); err != nil {
			return nil, fmt.Errorf("record/bun: decode extra for %s: %w", m.CorrelationID, err)
		}
	}
	return r, nil
}

func marshalExtra(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("record/bun: encode extra: %w", err)
	}
	return data, nil
}
