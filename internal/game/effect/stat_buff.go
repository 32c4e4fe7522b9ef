package effect

import (
	"fmt"

	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/model"
)

const StatBuffID = "stat_buff"

// StatBuff adds value to an additive field for its duration.
// Params: "stat" (shop key or field name), "value".
type StatBuff struct {
	field   model.Field
	value   float64
	applied bool
}

func NewStatBuff(params Params) (Effect, error) {
	field, ok := data.ShopStatField(params["stat"])
	if !ok {
		return nil, fmt.Errorf("stat %q is not additive", params["stat"])
	}
	value, err := params.Float("value", 0)
	if err != nil {
		return nil, err
	}
	return &StatBuff{field: field, value: value}, nil
}

func (e *StatBuff) ID() string { return StatBuffID }

func (e *StatBuff) OnApply(ctx *Context) {
	e.applied = ctx.Attrs.AddStat(ctx.Target, e.field, e.value)
}

func (e *StatBuff) OnTick(*Context) bool { return true }

func (e *StatBuff) OnExpire(ctx *Context) {
	if e.applied {
		ctx.Attrs.AddStat(ctx.Target, e.field, -e.value)
	}
}
