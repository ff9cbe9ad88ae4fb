package workflow

import "github.com/reybrally/order-pipeline/internal/domain/attrvalue"

// State — вершина графа жизненного цикла заказа.
type State string

const (
	StateProcessOrder   State = "ProcessOrder"
	StateProcessPayment State = "ProcessPayment"
	StateNotifySuccess  State = "NotifySuccess"
	StateNotifyFailure  State = "NotifyFailure"
	StateShipOrder      State = "ShipOrder"
	StateNotifyShipment State = "NotifyShipment"
	StateSucceeded      State = "Succeeded"
	StateFailed         State = "Failed"
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// notify-шаги — fire-and-forget: их сбой логируется и не валит исполнение.
func (s State) notify() bool {
	switch s {
	case StateNotifySuccess, StateNotifyFailure, StateNotifyShipment:
		return true
	}
	return false
}

const paymentSuccess = "SUCCESS"

// next возвращает следующую вершину. Развилка после оплаты смотрит на
// paymentStatus входного документа; вход неизменяем на всём протяжении
// исполнения, поэтому развилка детерминирована.
func next(s State, input attrvalue.Document) State {
	switch s {
	case StateProcessOrder:
		return StateProcessPayment
	case StateProcessPayment:
		if input.String("paymentStatus") == paymentSuccess {
			return StateNotifySuccess
		}
		return StateNotifyFailure
	case StateNotifySuccess:
		return StateShipOrder
	case StateShipOrder:
		return StateNotifyShipment
	case StateNotifyShipment:
		return StateSucceeded
	case StateNotifyFailure:
		return StateFailed
	}
	return StateFailed
}
