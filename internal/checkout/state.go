package checkout

type State string

const (
	StateCollectingAddress State = "collecting-address"
	StateSelectingPayment  State = "selecting-payment"
	StateConfirmed         State = "confirmed"
)

var validNext = map[State][]State{
	StateCollectingAddress: {StateSelectingPayment},
	StateSelectingPayment:  {StateCollectingAddress, StateConfirmed},
	StateConfirmed:         {},
}

func CanTransition(from, to State) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}
