package domain

import "fmt"

// Effect is a side effect attached to a transition.
type Effect uint8

const (
	EffectStampDelivered Effect = 1 << iota
	EffectRestock
)

// Notification templates sent to the customer.
const (
	TemplateOrderConfirmed = "order-confirmed"
	TemplateShipped        = "order-shipped"
	TemplateTracking       = "order-tracking"
	TemplateDelivered      = "order-delivered-review"
	TemplateCancelled      = "order-cancelled"
)

type Transition struct {
	From     OrderStatus
	To       OrderStatus
	Effects  Effect
	Template string
}

func (t Transition) Has(e Effect) bool { return t.Effects&e != 0 }

// SameState is true when the order already is in the target status. Such a
// transition never carries effects.
func (t Transition) SameState() bool { return t.From == t.To }

type rule struct {
	from     []OrderStatus // nil means any non-terminal status
	to       OrderStatus
	effects  Effect
	template string
}

var rules = []rule{
	{from: []OrderStatus{StatusProcessing}, to: StatusShipped, template: TemplateShipped},
	{from: []OrderStatus{StatusProcessing}, to: StatusTracking, template: TemplateTracking},
	{to: StatusDelivered, effects: EffectStampDelivered, template: TemplateDelivered},
	{to: StatusCancelled, effects: EffectRestock, template: TemplateCancelled},
}

// PlanTransition looks up the move from -> to in the transition table.
// Moving to the current status is always allowed and has no effects, which is
// what makes repeated admin updates and webhook replays harmless. Cancelled
// is terminal: its stock has already been returned.
func PlanTransition(from, to OrderStatus) (Transition, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return Transition{}, err
	}
	if from == to {
		return Transition{From: from, To: to}, nil
	}
	if from == StatusCancelled {
		return Transition{}, fmt.Errorf("order is cancelled and cannot move to %s", to)
	}
	for _, r := range rules {
		if r.to != to || !r.allows(from) {
			continue
		}
		return Transition{From: from, To: to, Effects: r.effects, Template: r.template}, nil
	}
	return Transition{}, fmt.Errorf("cannot move order from %s to %s", from, to)
}

func (r rule) allows(from OrderStatus) bool {
	if r.from == nil {
		return true
	}
	for _, f := range r.from {
		if f == from {
			return true
		}
	}
	return false
}
